package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds daemon listener settings.
type ServerConfig struct {
	Addr      string
	AuthToken string
}

// AgentConfig holds settings for the remote agent service.
type AgentConfig struct {
	URL          string
	ProbeTimeout time.Duration
	RunTimeout   time.Duration
}

// HistoryConfig holds submission history settings.
type HistoryConfig struct {
	Keep      int
	PruneCron string
}

// BarkConfig holds Bark notification settings.
type BarkConfig struct {
	URL     string
	Enabled bool
}

// NotificationConfig holds all notification settings.
type NotificationConfig struct {
	Bark BarkConfig
}

// Config holds all runtime configuration options for the daemon.
type Config struct {
	Server       ServerConfig
	Agent        AgentConfig
	History      HistoryConfig
	Notification NotificationConfig

	Mode          string
	LogLevel      string
	StateDir      string
	UseUTC        bool
	ShutdownGrace time.Duration
}

const (
	defaultAgentURL      = "http://localhost:3000"
	defaultAddr          = "127.0.0.1:7080"
	defaultMode          = "http"
	defaultLogLevel      = "info"
	defaultHistoryKeep   = 50
	defaultPruneCron     = "*/15 * * * *"
	defaultProbeTimeout  = 5 * time.Second
	defaultRunTimeout    = 10 * time.Minute
	defaultShutdownGrace = 5 * time.Second
)

// getEnvString returns the environment variable value or default
func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvInt returns the environment variable as int or default
func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvBool returns the environment variable as bool or default
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		lower := strings.ToLower(val)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultVal
}

// getEnvDuration returns the environment variable as duration or default
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// LoadDotEnv loads .env files from the working directory and the user config
// directory. Missing files are ignored and existing variables win.
func LoadDotEnv() {
	envFiles := []string{}
	for _, path := range []string{".env", userEnvFile()} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			envFiles = append(envFiles, path)
		}
	}
	if len(envFiles) > 0 {
		_ = godotenv.Load(envFiles...)
	}
}

func userEnvFile() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, "agentdesk", ".env")
}

// Parse reads os.Args, the environment and .env files into a Config.
// Priority: CLI flags > Environment variables > .env file > defaults
func Parse() (*Config, error) {
	LoadDotEnv()
	return ParseArgs(os.Args[1:])
}

// ParseArgs builds a Config from the environment and the given flags.
func ParseArgs(args []string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:      getEnvString("AGENTDESK_ADDR", defaultAddr),
			AuthToken: getEnvString("AGENTDESK_AUTH_TOKEN", ""),
		},
		Agent: AgentConfig{
			URL:          getEnvString("AGENTDESK_AGENT_URL", defaultAgentURL),
			ProbeTimeout: getEnvDuration("AGENTDESK_PROBE_TIMEOUT", defaultProbeTimeout),
			RunTimeout:   getEnvDuration("AGENTDESK_RUN_TIMEOUT", defaultRunTimeout),
		},
		History: HistoryConfig{
			Keep:      getEnvInt("AGENTDESK_HISTORY_KEEP", defaultHistoryKeep),
			PruneCron: getEnvString("AGENTDESK_PRUNE_CRON", defaultPruneCron),
		},
		Notification: NotificationConfig{
			Bark: BarkConfig{
				URL:     getEnvString("AGENTDESK_BARK_URL", ""),
				Enabled: getEnvBool("AGENTDESK_BARK_ENABLED", false),
			},
		},
		Mode:          getEnvString("AGENTDESK_MODE", defaultMode),
		LogLevel:      getEnvString("AGENTDESK_LOG_LEVEL", defaultLogLevel),
		StateDir:      getEnvString("AGENTDESK_STATE_DIR", ""),
		UseUTC:        getEnvBool("AGENTDESK_USE_UTC", false),
		ShutdownGrace: getEnvDuration("AGENTDESK_SHUTDOWN_GRACE", defaultShutdownGrace),
	}

	fs := flag.NewFlagSet("agentdeskd", flag.ContinueOnError)
	var addr, agentURL, mode, logLevel, stateDir string
	var historyKeep int
	var useUTC bool
	var runTimeout, shutdownGrace time.Duration

	fs.StringVar(&addr, "addr", "", "HTTP listen address (overrides env)")
	fs.StringVar(&agentURL, "agent-url", "", "Base URL of the agent service")
	fs.StringVar(&mode, "mode", "", "Serve mode: http, mcp or both")
	fs.StringVar(&stateDir, "state-dir", "", "Directory for the history database and quick_tasks.toml")
	fs.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.BoolVar(&useUTC, "use-utc", false, "Render timestamps in UTC instead of local time")
	fs.IntVar(&historyKeep, "history-keep", 0, "Number of finished submissions to retain")
	fs.DurationVar(&runTimeout, "run-timeout", 0, "Upper bound for one task submission (0 disables)")
	fs.DurationVar(&shutdownGrace, "shutdown-grace", 0, "Grace period when shutting down")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if addr != "" {
		cfg.Server.Addr = addr
	}
	if agentURL != "" {
		cfg.Agent.URL = agentURL
	}
	if mode != "" {
		cfg.Mode = mode
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if historyKeep > 0 {
		cfg.History.Keep = historyKeep
	}
	if stateDir != "" {
		cfg.StateDir = stateDir
	}
	// Zero is meaningful for these, so only apply them when given.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "use-utc":
			cfg.UseUTC = useUTC
		case "run-timeout":
			cfg.Agent.RunTimeout = runTimeout
		case "shutdown-grace":
			cfg.ShutdownGrace = shutdownGrace
		}
	})

	cfg.Agent.URL = strings.TrimRight(strings.TrimSpace(cfg.Agent.URL), "/")
	if cfg.Agent.URL == "" {
		return nil, fmt.Errorf("agent url is required")
	}
	switch cfg.Mode {
	case "http", "mcp", "both":
	default:
		return nil, fmt.Errorf("invalid mode %q (valid: http, mcp, both)", cfg.Mode)
	}

	if cfg.StateDir == "" {
		dir, err := defaultStateDir()
		if err != nil {
			return nil, fmt.Errorf("resolve default state dir: %w", err)
		}
		cfg.StateDir = dir
	}

	if cfg.History.Keep < 1 {
		cfg.History.Keep = defaultHistoryKeep
	}
	if cfg.Agent.RunTimeout < 0 {
		cfg.Agent.RunTimeout = 0
	}
	return cfg, nil
}

// Location returns the time zone used for rendering timestamps.
func (c *Config) Location() *time.Location {
	if c.UseUTC {
		return time.UTC
	}
	return time.Local
}

func defaultStateDir() (string, error) {
	baseDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(baseDir, "agentdesk")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}
