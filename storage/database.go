// Package storage provides data persistence using SQLite for the outreach
// engine. It tracks the target queue, per-target delivery outcomes, daily
// activity statistics, and browser session cookies.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/instaflow/instagram-outreach/logger"
	"github.com/instaflow/instagram-outreach/messaging"
)

// Database wraps SQLite database operations
type Database struct {
	db     *sql.DB
	logger *logger.Logger
}

// Target statuses
const (
	TargetPending = "pending"
	TargetSent    = "sent"
	TargetFailed  = "failed"
	TargetSkipped = "skipped"
)

// OutreachTarget is one queued recipient
type OutreachTarget struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OutcomeRecord is one persisted delivery outcome
type OutcomeRecord struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Status      bool      `json:"status"`
	SentVia     string    `json:"sent_via"`
	ErrorCode   string    `json:"error_code"`
	ErrorReason string    `json:"error_reason"`
	Timestamp   time.Time `json:"timestamp"`
}

// DailyStats tracks daily activity statistics
type DailyStats struct {
	Date           string `json:"date"`
	MessagesSent   int    `json:"messages_sent"`
	MessagesFailed int    `json:"messages_failed"`
	ProfilesViewed int    `json:"profiles_viewed"`
	PostsLiked     int    `json:"posts_liked"`
	FollowsMade    int    `json:"follows_made"`
}

// SessionCookie represents a stored browser cookie
type SessionCookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain"`
	Path     string `json:"path"`
	Expires  int64  `json:"expires"`
	HTTPOnly bool   `json:"http_only"`
	Secure   bool   `json:"secure"`
}

// NewDatabase creates a new database connection
func NewDatabase(dbPath string, log *logger.Logger) (*Database, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	database := &Database{
		db:     db,
		logger: log.WithModule("storage"),
	}

	if err := database.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	database.logger.Info("Database initialized successfully")
	return database, nil
}

// initSchema creates the database tables if they don't exist
func (d *Database) initSchema() error {
	schema := `
	-- Outreach target queue
	CREATE TABLE IF NOT EXISTS targets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		message TEXT NOT NULL,
		status TEXT DEFAULT 'pending',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Per-attempt delivery outcomes
	CREATE TABLE IF NOT EXISTS outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		status BOOLEAN NOT NULL,
		sent_via TEXT,
		error_code TEXT,
		error_reason TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Daily stats table
	CREATE TABLE IF NOT EXISTS daily_stats (
		date TEXT PRIMARY KEY,
		messages_sent INTEGER DEFAULT 0,
		messages_failed INTEGER DEFAULT 0,
		profiles_viewed INTEGER DEFAULT 0,
		posts_liked INTEGER DEFAULT 0,
		follows_made INTEGER DEFAULT 0
	);

	-- Session cookies table
	CREATE TABLE IF NOT EXISTS session_cookies (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		domain TEXT,
		path TEXT,
		expires INTEGER,
		http_only BOOLEAN,
		secure BOOLEAN,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Create indexes
	CREATE INDEX IF NOT EXISTS idx_targets_status ON targets(status);
	CREATE INDEX IF NOT EXISTS idx_outcomes_username ON outcomes(username);
	CREATE INDEX IF NOT EXISTS idx_outcomes_timestamp ON outcomes(timestamp);
	`

	_, err := d.db.Exec(schema)
	return err
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// ==============================================================================
// Target Queue Operations
// ==============================================================================

// AddTarget queues a recipient. Re-adding an existing username refreshes
// its message and resets it to pending.
func (d *Database) AddTarget(username, message string) error {
	query := `
		INSERT INTO targets (username, message, status)
		VALUES (?, ?, 'pending')
		ON CONFLICT(username) DO UPDATE SET
			message = excluded.message,
			status = 'pending',
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := d.db.Exec(query, username, message); err != nil {
		return fmt.Errorf("failed to add target: %w", err)
	}

	d.logger.WithField("username", username).Debug("Target queued")
	return nil
}

// GetPendingTargets returns up to limit queued targets, oldest first
func (d *Database) GetPendingTargets(limit int) ([]*OutreachTarget, error) {
	query := `
		SELECT id, username, message, status, created_at, updated_at
		FROM targets WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT ?
	`

	rows, err := d.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []*OutreachTarget
	for rows.Next() {
		t := &OutreachTarget{}
		err := rows.Scan(&t.ID, &t.Username, &t.Message, &t.Status, &t.CreatedAt, &t.UpdatedAt)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}

	return targets, rows.Err()
}

// UpdateTargetStatus moves a target out of the pending queue
func (d *Database) UpdateTargetStatus(username, status string) error {
	query := `UPDATE targets SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE username = ?`
	if _, err := d.db.Exec(query, status, username); err != nil {
		return fmt.Errorf("failed to update target status: %w", err)
	}

	d.logger.WithFields(map[string]interface{}{
		"username": username,
		"status":   status,
	}).Debug("Target status updated")
	return nil
}

// HasContacted reports whether any successful delivery exists for the user
func (d *Database) HasContacted(username string) (bool, error) {
	query := `SELECT COUNT(*) FROM outcomes WHERE username = ? AND status = 1`
	var count int
	if err := d.db.QueryRow(query, username).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// ==============================================================================
// Outcome Operations
// ==============================================================================

// RecordOutcome persists one delivery outcome and updates the target
// queue and daily stats accordingly.
func (d *Database) RecordOutcome(outcome messaging.Outcome) error {
	query := `
		INSERT INTO outcomes (username, status, sent_via, error_code, error_reason, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.Exec(query,
		outcome.Username, outcome.Status, string(outcome.SentVia),
		outcome.ErrorCode, outcome.ErrorReason, outcome.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}

	if outcome.Status {
		d.UpdateTargetStatus(outcome.Username, TargetSent)
		d.incrementDailyStat("messages_sent")
	} else {
		d.UpdateTargetStatus(outcome.Username, TargetFailed)
		d.incrementDailyStat("messages_failed")
	}

	d.logger.WithFields(map[string]interface{}{
		"username": outcome.Username,
		"status":   outcome.Status,
		"sent_via": string(outcome.SentVia),
	}).Info("Outcome recorded")
	return nil
}

// GetOutcomes returns the delivery history for a user, newest first
func (d *Database) GetOutcomes(username string) ([]*OutcomeRecord, error) {
	query := `
		SELECT id, username, status, sent_via, error_code, error_reason, timestamp
		FROM outcomes WHERE username = ?
		ORDER BY timestamp DESC
	`

	rows, err := d.db.Query(query, username)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*OutcomeRecord
	for rows.Next() {
		r := &OutcomeRecord{}
		err := rows.Scan(&r.ID, &r.Username, &r.Status, &r.SentVia, &r.ErrorCode, &r.ErrorReason, &r.Timestamp)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// GetTodayMessageCount returns the number of messages sent today
func (d *Database) GetTodayMessageCount() (int, error) {
	query := `SELECT COUNT(*) FROM outcomes WHERE status = 1 AND DATE(timestamp) = DATE('now')`
	var count int
	err := d.db.QueryRow(query).Scan(&count)
	return count, err
}

// ==============================================================================
// Daily Stats Operations
// ==============================================================================

// GetTodayStats returns today's activity statistics
func (d *Database) GetTodayStats() (*DailyStats, error) {
	today := time.Now().Format("2006-01-02")
	query := `SELECT date, messages_sent, messages_failed, profiles_viewed, posts_liked, follows_made FROM daily_stats WHERE date = ?`

	stats := &DailyStats{Date: today}
	err := d.db.QueryRow(query, today).Scan(
		&stats.Date, &stats.MessagesSent, &stats.MessagesFailed,
		&stats.ProfilesViewed, &stats.PostsLiked, &stats.FollowsMade,
	)

	if err == sql.ErrNoRows {
		return stats, nil
	}
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// incrementDailyStat increments a daily stat counter
func (d *Database) incrementDailyStat(statName string) error {
	return d.incrementDailyStatBy(statName, 1)
}

func (d *Database) incrementDailyStatBy(statName string, n int) error {
	if n <= 0 {
		return nil
	}
	today := time.Now().Format("2006-01-02")

	// Ensure row exists
	d.db.Exec(`INSERT OR IGNORE INTO daily_stats (date) VALUES (?)`, today)

	updateQuery := fmt.Sprintf(`UPDATE daily_stats SET %s = %s + ? WHERE date = ?`, statName, statName)
	_, err := d.db.Exec(updateQuery, n, today)
	return err
}

// RecordActivity folds the browsing totals of a finished session into
// today's stats row.
func (d *Database) RecordActivity(profilesViewed, postsLiked, follows int) error {
	if err := d.incrementDailyStatBy("profiles_viewed", profilesViewed); err != nil {
		return err
	}
	if err := d.incrementDailyStatBy("posts_liked", postsLiked); err != nil {
		return err
	}
	return d.incrementDailyStatBy("follows_made", follows)
}

// ==============================================================================
// Cookie/Session Operations
// ==============================================================================

// SaveCookies saves session cookies
func (d *Database) SaveCookies(cookies []*SessionCookie) error {
	// Clear existing cookies
	d.db.Exec("DELETE FROM session_cookies")

	query := `INSERT INTO session_cookies (name, value, domain, path, expires, http_only, secure) VALUES (?, ?, ?, ?, ?, ?, ?)`

	for _, cookie := range cookies {
		_, err := d.db.Exec(query, cookie.Name, cookie.Value, cookie.Domain, cookie.Path, cookie.Expires, cookie.HTTPOnly, cookie.Secure)
		if err != nil {
			return fmt.Errorf("failed to save cookie: %w", err)
		}
	}

	d.logger.Infof("Saved %d session cookies", len(cookies))
	return nil
}

// LoadCookies loads session cookies
func (d *Database) LoadCookies() ([]*SessionCookie, error) {
	query := `SELECT name, value, domain, path, expires, http_only, secure FROM session_cookies`

	rows, err := d.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cookies []*SessionCookie
	for rows.Next() {
		cookie := &SessionCookie{}
		err := rows.Scan(&cookie.Name, &cookie.Value, &cookie.Domain, &cookie.Path, &cookie.Expires, &cookie.HTTPOnly, &cookie.Secure)
		if err != nil {
			return nil, err
		}
		cookies = append(cookies, cookie)
	}

	d.logger.Infof("Loaded %d session cookies", len(cookies))
	return cookies, rows.Err()
}

// SaveCookiesToFile saves cookies to a JSON file
func (d *Database) SaveCookiesToFile(cookies []*SessionCookie, filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filePath, data, 0600)
}

// LoadCookiesFromFile loads cookies from a JSON file
func (d *Database) LoadCookiesFromFile(filePath string) ([]*SessionCookie, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var cookies []*SessionCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, err
	}

	return cookies, nil
}
