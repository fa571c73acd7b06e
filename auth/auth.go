// Package auth provides Instagram authentication functionality.
// It handles login, session persistence, and security challenge detection.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/instaflow/instagram-outreach/config"
	"github.com/instaflow/instagram-outreach/logger"
	"github.com/instaflow/instagram-outreach/stealth"
	"github.com/instaflow/instagram-outreach/storage"
)

// Common Instagram URLs
const (
	InstagramBaseURL      = "https://www.instagram.com"
	InstagramLoginURL     = "https://www.instagram.com/accounts/login/"
	InstagramChallengeURL = "https://www.instagram.com/challenge/"
)

// Error types for authentication
var (
	ErrLoginFailed       = errors.New("login failed: invalid credentials or unknown error")
	ErrTwoFactorRequired = errors.New("two-factor authentication required")
	ErrCaptchaRequired   = errors.New("captcha verification required")
	ErrChallengeRequired = errors.New("security challenge detected")
	ErrSessionExpired    = errors.New("session has expired")
	ErrAccountRestricted = errors.New("account access restricted")
)

// Authenticator handles Instagram authentication
type Authenticator struct {
	config     *config.Config
	logger     *logger.Logger
	stealth    *stealth.StealthManager
	db         *storage.Database
	page       *rod.Page
	isLoggedIn bool
}

// NewAuthenticator creates a new authenticator
func NewAuthenticator(cfg *config.Config, log *logger.Logger, s *stealth.StealthManager, db *storage.Database) *Authenticator {
	return &Authenticator{
		config:  cfg,
		logger:  log.WithModule("auth"),
		stealth: s,
		db:      db,
	}
}

// SetPage sets the page instance
func (a *Authenticator) SetPage(page *rod.Page) {
	a.page = page
}

// Login performs Instagram login with human-like behavior
func (a *Authenticator) Login(ctx context.Context) error {
	a.logger.Info("Starting login process")

	if a.tryExistingSession(ctx) {
		a.logger.Info("Successfully restored existing session")
		a.isLoggedIn = true
		return nil
	}

	a.logger.Info("Navigating to login page")
	if err := a.page.Navigate(InstagramLoginURL); err != nil {
		return fmt.Errorf("failed to navigate to login page: %w", err)
	}

	a.stealth.PageLoadDelay(ctx)
	if err := a.page.WaitLoad(); err != nil {
		return fmt.Errorf("failed to load login page: %w", err)
	}

	a.stealth.ApplyFingerprintMasking(a.page)

	// Random mouse movement before interaction
	a.stealth.RandomMouseWander(a.page)
	a.stealth.ThinkingDelay(ctx)

	a.logger.Debug("Entering username")
	usernameField, err := a.page.Timeout(10 * time.Second).Element(`input[name="username"]`)
	if err != nil {
		return fmt.Errorf("failed to find username field: %w", err)
	}

	if err := a.stealth.ClickElement(a.page, usernameField); err != nil {
		return fmt.Errorf("failed to click username field: %w", err)
	}
	if err := a.stealth.HumanType(ctx, a.page, usernameField, a.config.Instagram.Username); err != nil {
		return fmt.Errorf("failed to enter username: %w", err)
	}

	a.stealth.ActionDelay(ctx)

	a.logger.Debug("Entering password")
	passwordField, err := a.page.Element(`input[name="password"]`)
	if err != nil {
		return fmt.Errorf("failed to find password field: %w", err)
	}

	if err := a.stealth.ClickElement(a.page, passwordField); err != nil {
		return fmt.Errorf("failed to click password field: %w", err)
	}
	if err := a.stealth.HumanType(ctx, a.page, passwordField, a.config.Instagram.Password); err != nil {
		return fmt.Errorf("failed to enter password: %w", err)
	}

	a.stealth.ThinkingDelay(ctx)

	a.logger.Debug("Submitting login form")
	loginButton, err := a.page.Element(`button[type="submit"]`)
	if err != nil {
		return fmt.Errorf("failed to find login button: %w", err)
	}
	if err := a.stealth.ClickElement(a.page, loginButton); err != nil {
		return fmt.Errorf("failed to click login button: %w", err)
	}

	a.stealth.PageLoadDelay(ctx)
	time.Sleep(3 * time.Second) // Extra wait for login processing

	return a.checkLoginResult(ctx)
}

// checkLoginResult verifies if login was successful and handles errors
func (a *Authenticator) checkLoginResult(ctx context.Context) error {
	currentURL := a.currentURL()
	a.logger.WithField("url", currentURL).Debug("Checking login result")

	if strings.Contains(currentURL, "/challenge") {
		return a.handleChallenge()
	}

	if a.detect2FA() {
		a.logger.SecurityEvent("2FA_REQUIRED", "Two-factor authentication is required")
		return ErrTwoFactorRequired
	}

	if a.detectCaptcha() {
		a.logger.SecurityEvent("CAPTCHA_REQUIRED", "Captcha verification is required")
		return ErrCaptchaRequired
	}

	if a.detectLoginError() {
		return ErrLoginFailed
	}

	if a.detectAccountRestriction() {
		a.logger.SecurityEvent("ACCOUNT_RESTRICTED", "Account access has been restricted")
		return ErrAccountRestricted
	}

	// Still on the login form means the credentials were rejected silently
	if strings.Contains(currentURL, "/accounts/login") {
		return ErrLoginFailed
	}

	a.dismissPostLoginPrompts(ctx)

	if a.IsLoggedIn(ctx) {
		a.logger.Info("Login successful")
		a.isLoggedIn = true
		a.saveCookies()
		return nil
	}

	return ErrLoginFailed
}

// dismissPostLoginPrompts clears the "save login info" and notification
// prompts Instagram shows after a fresh login
func (a *Authenticator) dismissPostLoginPrompts(ctx context.Context) {
	for i := 0; i < 2; i++ {
		el, err := a.page.Timeout(4 * time.Second).ElementR(`button, div[role="button"]`, "^Not Now$")
		if err != nil || el == nil {
			return
		}
		el.Click(proto.InputMouseButtonLeft, 1)
		a.stealth.ActionDelay(ctx)
	}
}

// handleChallenge classifies the security challenge Instagram presented
func (a *Authenticator) handleChallenge() error {
	currentURL := a.currentURL()
	pageHTML, _ := a.page.HTML()
	lower := strings.ToLower(pageHTML)

	if strings.Contains(lower, "phone") || strings.Contains(currentURL, "phone") {
		a.logger.SecurityEvent("PHONE_VERIFICATION", "Phone verification required")
		return fmt.Errorf("%w: phone verification required", ErrChallengeRequired)
	}

	if strings.Contains(lower, "email") {
		a.logger.SecurityEvent("EMAIL_VERIFICATION", "Email verification required")
		return fmt.Errorf("%w: email verification required", ErrChallengeRequired)
	}

	if strings.Contains(lower, "suspicious") || strings.Contains(lower, "unusual") {
		a.logger.SecurityEvent("SUSPICIOUS_LOGIN", "Suspicious login challenge")
		return fmt.Errorf("%w: suspicious login challenge", ErrChallengeRequired)
	}

	a.logger.SecurityEvent("SECURITY_CHALLENGE", "Unknown security challenge detected")
	return ErrChallengeRequired
}

// detect2FA checks if two-factor authentication is required
func (a *Authenticator) detect2FA() bool {
	indicators := []string{
		`input[name="verificationCode"]`,
		`input[aria-label="Security code"]`,
	}

	for _, selector := range indicators {
		el, err := a.page.Timeout(2 * time.Second).Element(selector)
		if err == nil && el != nil {
			return true
		}
	}

	pageHTML, _ := a.page.HTML()
	keywords := []string{
		"Enter the code",
		"security code",
		"two-factor",
		"We sent a code",
	}
	for _, keyword := range keywords {
		if strings.Contains(pageHTML, keyword) {
			return true
		}
	}
	return false
}

// detectCaptcha checks if captcha verification is required
func (a *Authenticator) detectCaptcha() bool {
	captchaSelectors := []string{
		"#captcha",
		"iframe[src*='captcha']",
		"iframe[src*='recaptcha']",
	}

	for _, selector := range captchaSelectors {
		el, err := a.page.Timeout(2 * time.Second).Element(selector)
		if err == nil && el != nil {
			return true
		}
	}

	pageHTML, _ := a.page.HTML()
	return strings.Contains(strings.ToLower(pageHTML), "captcha")
}

// detectLoginError checks for login error messages
func (a *Authenticator) detectLoginError() bool {
	errorSelectors := []string{
		`#slfErrorAlert`,
		`p[data-testid="login-error-message"]`,
		`div[role="alert"]`,
	}

	for _, selector := range errorSelectors {
		el, err := a.page.Timeout(2 * time.Second).Element(selector)
		if err == nil && el != nil {
			text, _ := el.Text()
			if text != "" {
				a.logger.WithField("error_message", text).Error("Login error detected")
				return true
			}
		}
	}
	return false
}

// detectAccountRestriction checks if the account is restricted
func (a *Authenticator) detectAccountRestriction() bool {
	pageHTML, _ := a.page.HTML()
	lower := strings.ToLower(pageHTML)

	restrictionKeywords := []string{
		"account has been disabled",
		"unusual activity",
		"temporarily locked",
		"account suspended",
	}
	for _, keyword := range restrictionKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// IsLoggedIn checks if the user is currently logged in
func (a *Authenticator) IsLoggedIn(ctx context.Context) bool {
	if a.isLoggedIn {
		return true
	}

	a.page.Navigate(InstagramBaseURL)
	a.stealth.PageLoadDelay(ctx)
	time.Sleep(2 * time.Second)

	currentURL := a.currentURL()
	if strings.Contains(currentURL, "/accounts/login") {
		return false
	}

	// The home feed nav only renders for authenticated sessions
	navElement, err := a.page.Timeout(5 * time.Second).Element(`svg[aria-label="Home"], a[href="/direct/inbox/"]`)
	if err == nil && navElement != nil {
		a.isLoggedIn = true
		return true
	}

	return false
}

// tryExistingSession attempts to use an existing session from cookies
func (a *Authenticator) tryExistingSession(ctx context.Context) bool {
	a.logger.Debug("Attempting to restore existing session")

	cookies, err := a.db.LoadCookiesFromFile(a.config.Storage.CookiesPath)
	if err != nil {
		a.logger.WithError(err).Debug("Failed to load cookies from file")
		return false
	}
	if len(cookies) == 0 {
		a.logger.Debug("No existing cookies found")
		return false
	}

	// Drop anything expired
	validCookies := make([]*storage.SessionCookie, 0)
	now := time.Now().Unix()
	for _, cookie := range cookies {
		if cookie.Expires == 0 || cookie.Expires > now {
			validCookies = append(validCookies, cookie)
		}
	}
	if len(validCookies) == 0 {
		a.logger.Debug("All cookies have expired")
		return false
	}

	// Cookies can only be set for a domain the page has visited
	a.page.Navigate(InstagramBaseURL)
	a.stealth.PageLoadDelay(ctx)

	for _, cookie := range validCookies {
		err := a.page.SetCookies([]*proto.NetworkCookieParam{{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Domain:   cookie.Domain,
			Path:     cookie.Path,
			Expires:  proto.TimeSinceEpoch(cookie.Expires),
			HTTPOnly: cookie.HTTPOnly,
			Secure:   cookie.Secure,
		}})
		if err != nil {
			a.logger.WithError(err).Debug("Failed to set cookie")
		}
	}

	a.page.Navigate(InstagramBaseURL)
	a.stealth.PageLoadDelay(ctx)
	time.Sleep(2 * time.Second)

	return a.IsLoggedIn(ctx)
}

// saveCookies saves the current session cookies
func (a *Authenticator) saveCookies() error {
	cookies, err := a.page.Cookies([]string{InstagramBaseURL})
	if err != nil {
		return fmt.Errorf("failed to get cookies: %w", err)
	}

	storageCookies := make([]*storage.SessionCookie, len(cookies))
	for i, cookie := range cookies {
		storageCookies[i] = &storage.SessionCookie{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Domain:   cookie.Domain,
			Path:     cookie.Path,
			Expires:  int64(cookie.Expires),
			HTTPOnly: cookie.HTTPOnly,
			Secure:   cookie.Secure,
		}
	}

	if err := a.db.SaveCookies(storageCookies); err != nil {
		a.logger.WithError(err).Warn("Failed to save cookies to database")
	}

	if err := a.db.SaveCookiesToFile(storageCookies, a.config.Storage.CookiesPath); err != nil {
		a.logger.WithError(err).Warn("Failed to save cookies to file")
		return err
	}

	a.logger.Info("Session cookies saved successfully")
	return nil
}

// Logout clears the current session
func (a *Authenticator) Logout(ctx context.Context) error {
	a.logger.Info("Logging out")

	if err := a.page.Navigate("https://www.instagram.com/accounts/logout/"); err != nil {
		return fmt.Errorf("failed to navigate to logout: %w", err)
	}

	a.stealth.PageLoadDelay(ctx)
	a.isLoggedIn = false
	a.page.SetCookies(nil)

	a.logger.Info("Logged out successfully")
	return nil
}

func (a *Authenticator) currentURL() string {
	info, err := a.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}
