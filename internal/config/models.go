package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TelegramConfig represents the chat delivery configuration
type TelegramConfig struct {
	BotToken          string
	UserChatID        string
	ChannelChatID     string
	DisableWebPreview bool
}

// IMAPConfig represents the mailbox configuration
type IMAPConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	Folder        string
	AllMailFolder string
	Query         string
	FetchLimit    int
	IdleTimeout   time.Duration
}

// Addr returns host:port
func (c IMAPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DigestConfig represents parsing and composition settings
type DigestConfig struct {
	Title             string
	MaxItems          int
	MaxAge            time.Duration
	SendWatcherToUser bool
	SiteHost          string
	LinkParam         string
	AllowedSenders    []string
}

// WatcherConfig represents reconnect settings of the watch loop
type WatcherConfig struct {
	BackoffMin time.Duration
	BackoffMax time.Duration
}

// StateConfig represents the cursor store configuration
type StateConfig struct {
	Type       string
	File       string
	SQLitePath string
	MySQLDSN   string
}

// SMTPMirrorConfig represents the optional e-mail copy of every digest
type SMTPMirrorConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	StartTLS bool
}

// LoggingConfig represents the logger configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// GetTelegram returns the Telegram configuration
func (c *Config) GetTelegram() TelegramConfig {
	return TelegramConfig{
		BotToken:          strings.TrimSpace(c.GetString("telegram.bot_token")),
		UserChatID:        strings.TrimSpace(c.GetString("telegram.user_chat_id")),
		ChannelChatID:     strings.TrimSpace(c.GetString("telegram.channel_chat_id")),
		DisableWebPreview: c.GetBool("telegram.disable_web_preview"),
	}
}

// GetIMAP returns the mailbox configuration
func (c *Config) GetIMAP() IMAPConfig {
	idle, err := c.GetDuration("imap.idle_timeout")
	if err != nil || idle <= 0 {
		idle = 25 * time.Minute
	}

	return IMAPConfig{
		Host:          strings.TrimSpace(c.GetString("imap.host")),
		Port:          c.GetInt("imap.port"),
		Username:      strings.TrimSpace(c.GetString("imap.username")),
		Password:      strings.TrimSpace(c.GetString("imap.password")),
		Folder:        strings.TrimSpace(c.GetString("imap.folder")),
		AllMailFolder: strings.TrimSpace(c.GetString("imap.all_mail_folder")),
		Query:         strings.TrimSpace(c.GetString("imap.query")),
		FetchLimit:    c.GetInt("imap.fetch_limit"),
		IdleTimeout:   idle,
	}
}

// GetDigest returns the digest configuration
func (c *Config) GetDigest() DigestConfig {
	return DigestConfig{
		Title:             c.GetString("digest.title"),
		MaxItems:          c.GetInt("digest.max_items"),
		MaxAge:            time.Duration(c.GetInt("digest.max_age_minutes")) * time.Minute,
		SendWatcherToUser: c.GetBool("digest.send_watcher_to_user"),
		SiteHost:          c.GetString("digest.site_host"),
		LinkParam:         c.GetString("digest.link_param"),
		AllowedSenders:    c.GetStringSlice("digest.allowed_senders"),
	}
}

// GetWatcher returns the watch loop configuration
func (c *Config) GetWatcher() WatcherConfig {
	backoffMin, err := c.GetDuration("watcher.backoff_min")
	if err != nil || backoffMin <= 0 {
		backoffMin = 5 * time.Second
	}
	backoffMax, err := c.GetDuration("watcher.backoff_max")
	if err != nil || backoffMax < backoffMin {
		backoffMax = 60 * time.Second
		if backoffMax < backoffMin {
			backoffMax = backoffMin
		}
	}

	return WatcherConfig{
		BackoffMin: backoffMin,
		BackoffMax: backoffMax,
	}
}

// GetState returns the cursor store configuration
func (c *Config) GetState() StateConfig {
	return StateConfig{
		Type:       strings.ToLower(strings.TrimSpace(c.GetString("state.type"))),
		File:       c.StateFilePath(),
		SQLitePath: c.GetString("state.sqlite_path"),
		MySQLDSN:   c.GetString("state.mysql_dsn"),
	}
}

// StateFilePath resolves the cursor file: an explicit state.file (relative
// paths are joined to the working directory), then state.json inside
// state.volume_path, then ./state.json.
func (c *Config) StateFilePath() string {
	base, err := os.Getwd()
	if err != nil {
		base = "."
	}

	if file := strings.TrimSpace(c.GetString("state.file")); file != "" {
		if filepath.IsAbs(file) {
			return file
		}
		return filepath.Join(base, file)
	}

	if volume := strings.TrimSpace(c.GetString("state.volume_path")); volume != "" {
		return filepath.Join(volume, "state.json")
	}

	return filepath.Join(base, "state.json")
}

// GetSMTPMirror returns the e-mail mirror configuration
func (c *Config) GetSMTPMirror() SMTPMirrorConfig {
	return SMTPMirrorConfig{
		Enabled:  c.GetBool("mirror.smtp.enabled"),
		Host:     c.GetString("mirror.smtp.host"),
		Port:     c.GetInt("mirror.smtp.port"),
		Username: c.GetString("mirror.smtp.username"),
		Password: c.GetString("mirror.smtp.password"),
		From:     c.GetString("mirror.smtp.from"),
		To:       c.GetStringSlice("mirror.smtp.to"),
		StartTLS: c.GetBool("mirror.smtp.starttls"),
	}
}

// GetLogging returns the logging configuration
func (c *Config) GetLogging() LoggingConfig {
	return LoggingConfig{
		Level:  c.GetString("logging.level"),
		Format: c.GetString("logging.format"),
	}
}
