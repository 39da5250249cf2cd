package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingRequired is returned by Validate when required settings are absent
var ErrMissingRequired = errors.New("missing required configuration")

// legacyEnv maps configuration keys to the environment variable names used
// by existing deployments.
var legacyEnv = map[string]string{
	"telegram.bot_token":           "BOT_TOKEN",
	"telegram.user_chat_id":        "TG_CHAT_ID",
	"telegram.channel_chat_id":     "TG_CHANNEL_CHAT_ID",
	"telegram.disable_web_preview": "DISABLE_WEB_PREVIEW",
	"imap.username":                "GMAIL_USER",
	"imap.password":                "GMAIL_APP_PASSWORD",
	"imap.host":                    "IMAP_HOST",
	"imap.folder":                  "GMAIL_FOLDER",
	"imap.query":                   "GMAIL_RAW_QUERY",
	"digest.max_items":             "MAX_ITEMS",
	"digest.max_age_minutes":       "MAX_EMAIL_AGE_MINUTES",
	"digest.send_watcher_to_user":  "SEND_WATCHER_TO_USER",
	"state.file":                   "STATE_FILE",
	"state.volume_path":            "RAILWAY_VOLUME_MOUNT_PATH",
}

// requiredKeys must be non-empty for the daemon to start
var requiredKeys = []string{
	"telegram.bot_token",
	"telegram.user_chat_id",
	"telegram.channel_chat_id",
	"imap.username",
	"imap.password",
}

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance. A .env file in the working
// directory is loaded first and never overrides the real environment.
func New() (*Config, error) {
	return load("")
}

// NewFromFile creates a configuration instance from an explicit config file
func NewFromFile(path string) (*Config, error) {
	return load(path)
}

func load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/digest-relay/")
		v.AddConfigPath("$HOME/.digest-relay")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	setDefaults(v)
	bindEnv(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults and environment
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func bindEnv(v *viper.Viper) {
	v.AutomaticEnv()
	v.SetEnvPrefix("DIGEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Explicit bindings replace the automatic name, so the prefixed
	// name is listed first.
	for key, legacy := range legacyEnv {
		prefixed := "DIGEST_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, legacy)
	}
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Telegram defaults
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.user_chat_id", "")
	v.SetDefault("telegram.channel_chat_id", "")
	v.SetDefault("telegram.disable_web_preview", true)

	// Mailbox defaults
	v.SetDefault("imap.host", "imap.gmail.com")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.password", "")
	v.SetDefault("imap.folder", "KWORK_PROJECTS")
	v.SetDefault("imap.all_mail_folder", "[Gmail]/Вся почта")
	v.SetDefault("imap.query", `from:news@kwork.ru subject:"Новые проекты на бирже Kwork"`)
	v.SetDefault("imap.fetch_limit", 80)
	v.SetDefault("imap.idle_timeout", "25m")

	// Digest defaults
	v.SetDefault("digest.title", "Kwork: новые проекты")
	v.SetDefault("digest.max_items", 10)
	v.SetDefault("digest.max_age_minutes", 600)
	v.SetDefault("digest.send_watcher_to_user", false)
	v.SetDefault("digest.site_host", "kwork.ru")
	v.SetDefault("digest.link_param", "project")
	v.SetDefault("digest.allowed_senders", []string{})

	// Watcher defaults
	v.SetDefault("watcher.backoff_min", "5s")
	v.SetDefault("watcher.backoff_max", "60s")

	// State defaults
	v.SetDefault("state.type", "file")
	v.SetDefault("state.file", "")
	v.SetDefault("state.volume_path", "")
	v.SetDefault("state.sqlite_path", "/data/digest_state.db")
	v.SetDefault("state.mysql_dsn", "user:password@tcp(localhost:3306)/digest_relay")

	// Mirror defaults
	v.SetDefault("mirror.smtp.enabled", false)
	v.SetDefault("mirror.smtp.host", "localhost")
	v.SetDefault("mirror.smtp.port", 25)
	v.SetDefault("mirror.smtp.username", "")
	v.SetDefault("mirror.smtp.password", "")
	v.SetDefault("mirror.smtp.from", "digest-relay@localhost")
	v.SetDefault("mirror.smtp.to", []string{})
	v.SetDefault("mirror.smtp.starttls", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate reports every missing required key in a single error
func (c *Config) Validate() error {
	var missing []string
	for _, key := range requiredKeys {
		if strings.TrimSpace(c.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingRequired, strings.Join(missing, ", "))
	}
	return nil
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// Set overrides a value, mainly for command-line flags
func (c *Config) Set(key string, value any) {
	c.v.Set(key, value)
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
