// Package config provides configuration management for the outreach engine.
// It supports YAML configuration files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the outreach engine
type Config struct {
	// Instagram credentials
	Instagram InstagramConfig `yaml:"instagram"`

	// Browser configuration
	Browser BrowserConfig `yaml:"browser"`

	// Stealth settings for anti-detection
	Stealth StealthConfig `yaml:"stealth"`

	// Engagement daily caps
	Engagement EngagementConfig `yaml:"engagement"`

	// Session orchestration settings
	Session SessionConfig `yaml:"session"`

	// Messaging configuration
	Messaging MessagingConfig `yaml:"messaging"`

	// Storage configuration
	Storage StorageConfig `yaml:"storage"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging"`
}

// InstagramConfig holds account credentials
type InstagramConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// BrowserConfig holds browser automation settings
type BrowserConfig struct {
	Headless       bool   `yaml:"headless"`
	UserDataDir    string `yaml:"user_data_dir"`
	SlowMotion     int    `yaml:"slow_motion_ms"`
	Timeout        int    `yaml:"timeout_seconds"`
	ViewportWidth  int    `yaml:"viewport_width"`
	ViewportHeight int    `yaml:"viewport_height"`
}

// StealthConfig holds anti-detection settings
type StealthConfig struct {
	// Mouse movement settings
	MouseSpeedMin     float64 `yaml:"mouse_speed_min"`
	MouseSpeedMax     float64 `yaml:"mouse_speed_max"`
	MouseOvershoot    bool    `yaml:"mouse_overshoot"`
	MouseMicroCorrect bool    `yaml:"mouse_micro_corrections"`

	// Typing settings
	TypingWPM         float64 `yaml:"typing_wpm"`
	TypingVariance    float64 `yaml:"typing_variance"`
	TypingMistakeRate float64 `yaml:"typing_mistake_rate"`

	// Scrolling settings
	ScrollBackChance float64 `yaml:"scroll_back_chance"`

	// Timing settings
	ActionDelayMin  float64 `yaml:"action_delay_min_seconds"`
	ActionDelayMax  float64 `yaml:"action_delay_max_seconds"`
	PageLoadWaitMin float64 `yaml:"page_load_wait_min_seconds"`
	PageLoadWaitMax float64 `yaml:"page_load_wait_max_seconds"`

	// Fingerprint masking
	RandomizeViewport bool `yaml:"randomize_viewport"`
	DisableWebdriver  bool `yaml:"disable_webdriver"`
	RandomUserAgent   bool `yaml:"random_user_agent"`
}

// EngagementConfig holds daily engagement caps
type EngagementConfig struct {
	DailyFollowLimit int `yaml:"daily_follow_limit"`
	DailyLikeLimit   int `yaml:"daily_like_limit"`
}

// SessionConfig holds session orchestration settings
type SessionConfig struct {
	BehaviorType      string   `yaml:"behavior_type"`
	DurationMinutes   int      `yaml:"duration_minutes"`
	MessageMode       string   `yaml:"message_mode"`      // auto, dm, story, highlight
	ChannelPriority   []string `yaml:"channel_priority"`  // fallback order for auto mode
	PreEngage         bool     `yaml:"pre_engage"`        // engage with posts before messaging
	DistractionChance float64  `yaml:"distraction_chance"`
}

// MessagingConfig holds messaging settings
type MessagingConfig struct {
	MessageTemplate    string `yaml:"message_template"`
	MaxMessageLength   int    `yaml:"max_message_length"`
	UIWaitSeconds      int    `yaml:"ui_wait_seconds"`
	NetworkWaitSeconds int    `yaml:"network_wait_seconds"`
}

// StorageConfig holds data persistence settings
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	CookiesPath  string `yaml:"cookies_path"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	OutputFile string `yaml:"output_file"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Instagram: InstagramConfig{
			Username: "",
			Password: "",
		},
		Browser: BrowserConfig{
			Headless:       false,
			UserDataDir:    "./data/browser",
			SlowMotion:     0,
			Timeout:        30,
			ViewportWidth:  1366,
			ViewportHeight: 768,
		},
		Stealth: StealthConfig{
			MouseSpeedMin:     0.5,
			MouseSpeedMax:     2.0,
			MouseOvershoot:    true,
			MouseMicroCorrect: true,
			TypingWPM:         42,
			TypingVariance:    0.25,
			TypingMistakeRate: 0.02,
			ScrollBackChance:  0.15,
			ActionDelayMin:    0.5,
			ActionDelayMax:    2.0,
			PageLoadWaitMin:   1.0,
			PageLoadWaitMax:   3.0,
			RandomizeViewport: true,
			DisableWebdriver:  true,
			RandomUserAgent:   true,
		},
		Engagement: EngagementConfig{
			DailyFollowLimit: 30,
			DailyLikeLimit:   100,
		},
		Session: SessionConfig{
			BehaviorType:      "casual_browser",
			DurationMinutes:   20,
			MessageMode:       "auto",
			ChannelPriority:   []string{"Highlight", "Story", "DM"},
			PreEngage:         true,
			DistractionChance: 0.10,
		},
		Messaging: MessagingConfig{
			MessageTemplate:    "Hi! Loved your recent content — we'd like to talk about a collaboration.",
			MaxMessageLength:   1000,
			UIWaitSeconds:      8,
			NetworkWaitSeconds: 15,
		},
		Storage: StorageConfig{
			DatabasePath: "./data/outreach.db",
			CookiesPath:  "./data/cookies.json",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputFile: "./logs/outreach.log",
		},
	}
}

// LoadConfig loads configuration from a YAML file and applies environment variable overrides
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	// Try to load from file if it exists
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// File doesn't exist, use defaults
		} else {
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Apply environment variable overrides
	config.applyEnvOverrides()

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration
func (c *Config) applyEnvOverrides() {
	// Instagram credentials (most commonly overridden via env)
	if username := os.Getenv("INSTAGRAM_USERNAME"); username != "" {
		c.Instagram.Username = username
	}
	if password := os.Getenv("INSTAGRAM_PASSWORD"); password != "" {
		c.Instagram.Password = password
	}

	// Browser settings
	if headless := os.Getenv("BROWSER_HEADLESS"); headless != "" {
		c.Browser.Headless = headless == "true" || headless == "1"
	}
	if userDataDir := os.Getenv("BROWSER_USER_DATA_DIR"); userDataDir != "" {
		c.Browser.UserDataDir = userDataDir
	}

	// Engagement caps
	if follows := os.Getenv("DAILY_FOLLOW_LIMIT"); follows != "" {
		if val, err := strconv.Atoi(follows); err == nil {
			c.Engagement.DailyFollowLimit = val
		}
	}
	if likes := os.Getenv("DAILY_LIKE_LIMIT"); likes != "" {
		if val, err := strconv.Atoi(likes); err == nil {
			c.Engagement.DailyLikeLimit = val
		}
	}

	// Session
	if minutes := os.Getenv("SESSION_DURATION_MINUTES"); minutes != "" {
		if val, err := strconv.Atoi(minutes); err == nil {
			c.Session.DurationMinutes = val
		}
	}

	// Logging
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("LOG_FORMAT"); logFormat != "" {
		c.Logging.Format = logFormat
	}

	// Storage
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		c.Storage.DatabasePath = dbPath
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate required fields
	if c.Instagram.Username == "" {
		return fmt.Errorf("Instagram username is required (set INSTAGRAM_USERNAME env var or in config)")
	}
	if c.Instagram.Password == "" {
		return fmt.Errorf("Instagram password is required (set INSTAGRAM_PASSWORD env var or in config)")
	}

	// Validate engagement caps
	if c.Engagement.DailyFollowLimit < 0 || c.Engagement.DailyFollowLimit > 200 {
		return fmt.Errorf("daily_follow_limit must be between 0 and 200")
	}
	if c.Engagement.DailyLikeLimit < 0 || c.Engagement.DailyLikeLimit > 500 {
		return fmt.Errorf("daily_like_limit must be between 0 and 500")
	}

	// Validate session settings
	if c.Session.DurationMinutes <= 0 {
		return fmt.Errorf("session duration_minutes must be positive")
	}
	validModes := map[string]bool{"auto": true, "dm": true, "story": true, "highlight": true}
	if !validModes[strings.ToLower(c.Session.MessageMode)] {
		return fmt.Errorf("invalid message_mode: %s (must be auto, dm, story, or highlight)", c.Session.MessageMode)
	}
	for _, ch := range c.Session.ChannelPriority {
		switch ch {
		case "Highlight", "Story", "DM":
		default:
			return fmt.Errorf("invalid channel in channel_priority: %s", ch)
		}
	}

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

// GetTimeout returns the configured browser timeout as a time.Duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Browser.Timeout) * time.Second
}

// SessionDuration returns the configured session duration
func (c *Config) SessionDuration() time.Duration {
	return time.Duration(c.Session.DurationMinutes) * time.Minute
}

// SaveConfig saves the current configuration to a YAML file
func (c *Config) SaveConfig(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
