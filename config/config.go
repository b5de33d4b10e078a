package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve in minimal containers

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	TelegramToken   string `yaml:"telegram_token"`
	OwnerTelegramID int64  `yaml:"owner_telegram_id"`
	GroupName       string `yaml:"group_name"`
	GroupChatID     int64  `yaml:"group_chat_id"`

	CalendarPath string         `yaml:"calendar_path"`
	DatabasePath string         `yaml:"database_path"`
	TimezoneName string         `yaml:"timezone"`
	Timezone     *time.Location `yaml:"-"`

	CheckInterval   time.Duration `yaml:"check_interval"`
	Lookahead       time.Duration `yaml:"lookahead"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`

	WebhookURL  string `yaml:"webhook_url"`
	ServerPort  string `yaml:"server_port"`
	WebPort     string `yaml:"web_port"`
	NotifyURL   string `yaml:"notify_url"`
	NotifyToken string `yaml:"notify_token"`
	APIUsername string `yaml:"api_username"`
	APIPassword string `yaml:"api_password"`
	PublicDir   string `yaml:"public_dir"`

	CalDAVURL      string        `yaml:"caldav_url"`
	CalDAVUsername string        `yaml:"caldav_username"`
	CalDAVPassword string        `yaml:"caldav_password"`
	CalDAVCalendar string        `yaml:"caldav_calendar"`
	CalDAVHorizon  time.Duration `yaml:"caldav_horizon"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		GroupName:       "Teste_Grupo",
		CalendarPath:    "./data/calendario.ics",
		DatabasePath:    "./data/deadlinebot.db",
		TimezoneName:    "America/Sao_Paulo",
		CheckInterval:   time.Hour,
		Lookahead:       24 * time.Hour,
		DeliveryTimeout: 30 * time.Second,
		ServerPort:      "3001",
		WebPort:         "3000",
		NotifyURL:       "http://localhost:3001/notify",
		PublicDir:       "./public",
		CalDAVHorizon:   30 * 24 * time.Hour,
	}
}

// Load builds the config from defaults, an optional YAML file (CONFIG_FILE)
// and the environment, in that order. A .env file in the working directory
// is loaded first if present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded .env file")
	}

	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	tz, err := time.LoadLocation(cfg.TimezoneName)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Timezone = tz

	if cfg.CheckInterval <= 0 {
		return nil, fmt.Errorf("CHECK_INTERVAL must be positive")
	}
	if cfg.Lookahead <= 0 {
		return nil, fmt.Errorf("LOOKAHEAD must be positive")
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file %s not found", path)
		}
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	setString(&c.TelegramToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.GroupName, "GROUP_NAME")
	setString(&c.CalendarPath, "CALENDAR_PATH")
	setString(&c.DatabasePath, "DATABASE_PATH")
	setString(&c.TimezoneName, "TIMEZONE")
	setString(&c.WebhookURL, "WEBHOOK_URL")
	setString(&c.ServerPort, "SERVER_PORT")
	setString(&c.WebPort, "WEB_PORT")
	setString(&c.NotifyURL, "NOTIFY_URL")
	setString(&c.NotifyToken, "NOTIFY_TOKEN")
	setString(&c.APIUsername, "API_USERNAME")
	setString(&c.APIPassword, "API_PASSWORD")
	setString(&c.PublicDir, "PUBLIC_DIR")
	setString(&c.CalDAVURL, "CALDAV_URL")
	setString(&c.CalDAVUsername, "CALDAV_USERNAME")
	setString(&c.CalDAVPassword, "CALDAV_PASSWORD")
	setString(&c.CalDAVCalendar, "CALDAV_CALENDAR")

	if err := setInt64(&c.OwnerTelegramID, "OWNER_TELEGRAM_ID"); err != nil {
		return err
	}
	if err := setInt64(&c.GroupChatID, "GROUP_CHAT_ID"); err != nil {
		return err
	}

	for name, dst := range map[string]*time.Duration{
		"CHECK_INTERVAL":   &c.CheckInterval,
		"LOOKAHEAD":        &c.Lookahead,
		"DELIVERY_TIMEOUT": &c.DeliveryTimeout,
		"CALDAV_HORIZON":   &c.CalDAVHorizon,
	} {
		if err := setDuration(dst, name); err != nil {
			return err
		}
	}
	return nil
}

// ValidateBot checks the settings only the bot process needs.
func (c *Config) ValidateBot() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.OwnerTelegramID == 0 {
		return fmt.Errorf("OWNER_TELEGRAM_ID is required and must be a number")
	}
	if c.GroupName == "" && c.GroupChatID == 0 {
		return fmt.Errorf("GROUP_NAME or GROUP_CHAT_ID is required")
	}
	return nil
}

func (c *Config) IsOwner(telegramID int64) bool {
	return telegramID == c.OwnerTelegramID
}

// CalDAVEnabled reports whether a remote calendar source is configured.
func (c *Config) CalDAVEnabled() bool {
	return c.CalDAVURL != "" && c.CalDAVUsername != "" && c.CalDAVPassword != ""
}

func setString(dst *string, name string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func setInt64(dst *int64, name string) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s must be a number", name)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, name string) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = d
	return nil
}
