package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/honeytrace/honeypot/internal/capture"
)

const (
	DefaultSSHBanner    = "SSH-2.0-OpenSSH_7.4"
	DefaultTelnetBanner = "Ubuntu 20.04.3 LTS"
)

type Config struct {
	BindHost     string
	SSHPort      int
	TelnetPort   int
	SSHBanner    string
	TelnetBanner string
	MaxSessions  int
	IdleTimeout  time.Duration
	Autostart    bool

	SQLitePath       string
	NotifySQLitePath string
	StatePath        string

	AMQPURL   string
	AMQPQueue string

	ControlBindAddr string
	ControlToken    string

	LogLevel slog.Level
}

func LoadFromEnv() (Config, error) {
	var cfg Config
	var bad []string

	cfg.BindHost = env("HONEYPOT_BIND_HOST", "0.0.0.0")
	cfg.SSHPort = envInt("HONEYPOT_SSH_PORT", 2222, &bad)
	cfg.TelnetPort = envInt("HONEYPOT_TELNET_PORT", 2323, &bad)
	cfg.SSHBanner = env("HONEYPOT_SSH_BANNER", DefaultSSHBanner)
	cfg.TelnetBanner = env("HONEYPOT_TELNET_BANNER", DefaultTelnetBanner)
	cfg.MaxSessions = envInt("HONEYPOT_MAX_SESSIONS", capture.DefaultMaxSessions, &bad)

	cfg.IdleTimeout = 10 * time.Minute
	if v := strings.TrimSpace(os.Getenv("HONEYPOT_IDLE_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			bad = append(bad, "HONEYPOT_IDLE_TIMEOUT")
		} else {
			cfg.IdleTimeout = d
		}
	}

	cfg.Autostart = true
	if v := strings.TrimSpace(os.Getenv("HONEYPOT_AUTOSTART")); v != "" {
		cfg.Autostart = parseBool(v)
	}

	cfg.SQLitePath = env("HONEYPOT_SQLITE_PATH", "/var/lib/honeypot/records.sqlite")
	cfg.NotifySQLitePath = env("HONEYPOT_NOTIFY_SQLITE_PATH", "/var/lib/honeypot/notifications.sqlite")
	cfg.StatePath = env("HONEYPOT_STATE_PATH", "/var/lib/honeypot/state.json")

	cfg.AMQPURL = strings.TrimSpace(os.Getenv("HONEYPOT_AMQP_URL"))
	cfg.AMQPQueue = env("HONEYPOT_AMQP_QUEUE", "honeypot.notifications")

	cfg.ControlBindAddr = env("CONTROL_BIND_ADDR", "127.0.0.1:18080")
	cfg.ControlToken = strings.TrimSpace(os.Getenv("CONTROL_TOKEN"))

	level, ok := ParseLevel(os.Getenv("LOG_LEVEL"))
	if !ok {
		bad = append(bad, "LOG_LEVEL")
	}
	cfg.LogLevel = level

	if len(bad) > 0 {
		return Config{}, fmt.Errorf("invalid env: %s", strings.Join(bad, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate is exported so flag overrides can be rechecked after parsing.
func (c Config) Validate() error {
	var problems []string
	if c.SSHPort < 0 || c.SSHPort > 65535 {
		problems = append(problems, fmt.Sprintf("ssh port %d out of range", c.SSHPort))
	}
	if c.TelnetPort < 0 || c.TelnetPort > 65535 {
		problems = append(problems, fmt.Sprintf("telnet port %d out of range", c.TelnetPort))
	}
	if c.SSHPort != 0 && c.SSHPort == c.TelnetPort {
		problems = append(problems, fmt.Sprintf("ssh and telnet share port %d", c.SSHPort))
	}
	if c.MaxSessions < 0 {
		problems = append(problems, "max sessions must be >= 0")
	}
	if c.SQLitePath == "" {
		problems = append(problems, "HONEYPOT_SQLITE_PATH is empty")
	}
	if c.NotifySQLitePath == "" {
		problems = append(problems, "HONEYPOT_NOTIFY_SQLITE_PATH is empty")
	}
	if c.StatePath == "" {
		problems = append(problems, "HONEYPOT_STATE_PATH is empty")
	}
	if _, _, err := net.SplitHostPort(c.ControlBindAddr); err != nil {
		problems = append(problems, fmt.Sprintf("CONTROL_BIND_ADDR %q: %v", c.ControlBindAddr, err))
	}
	if c.AMQPURL != "" && !strings.HasPrefix(c.AMQPURL, "amqp://") && !strings.HasPrefix(c.AMQPURL, "amqps://") {
		problems = append(problems, fmt.Sprintf("HONEYPOT_AMQP_URL must start with amqp:// or amqps://, got %q", c.AMQPURL))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c Config) Capture() capture.Config {
	return capture.Config{
		BindHost:     c.BindHost,
		SSHPort:      c.SSHPort,
		TelnetPort:   c.TelnetPort,
		SSHBanner:    c.SSHBanner,
		TelnetBanner: c.TelnetBanner,
		MaxSessions:  c.MaxSessions,
		IdleTimeout:  c.IdleTimeout,
	}
}

func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int, bad *[]string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*bad = append(*bad, key)
		return def
	}
	return n
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}
