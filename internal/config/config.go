package config

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "UTC"
	defaultDataPath   = "data"
	configPathEnv     = "CONTRACTGRAPH_CONFIG"
	dataPathEnv       = "CONTRACTGRAPH_DATA_PATH"
	databaseDSNEnv    = "DATABASE_DSN"
	graphDriverEnv    = "GRAPH_DRIVER"
	chatGPTAPIKeyEnv  = "CHATGPT_API_KEY"
	chatGPTModelEnv   = "CHATGPT_MODEL"
	logLevelEnv       = "LOG_LEVEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Extraction providers.
const (
	ProviderChatGPT = "chatgpt"
	ProviderML      = "ml"
	ProviderNone    = "none"
)

// Config holds high-level settings required across the application.
type Config struct {
	DataPath      string             `yaml:"dataPath"`
	Logging       LoggingConfig      `yaml:"logging"`
	Graph         GraphConfig        `yaml:"graph"`
	Cache         CacheConfig        `yaml:"cache"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Extraction    ExtractionConfig   `yaml:"extraction"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications"`
	ML            MLConfig           `yaml:"ml"`
	ChatGPT       ChatGPTConfig      `yaml:"chatgpt"`
	Corpora       []CorpusConfig     `yaml:"corpora"`
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// GraphConfig describes the property-graph store. Driver is "sqlite" or "postgres".
type GraphConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// CacheConfig locates the processed-contract snapshot.
type CacheConfig struct {
	Path       string `yaml:"path"`
	MaxBackups int    `yaml:"maxBackups"`
}

// PipelineConfig tunes batch runs.
type PipelineConfig struct {
	ProgressEvery int    `yaml:"progressEvery"`
	MaxFiles      int    `yaml:"maxFiles"`
	MaxChars      int    `yaml:"maxChars"`
	ReportDir     string `yaml:"reportDir"`
}

// ExtractionConfig picks the AI extraction capability.
type ExtractionConfig struct {
	Provider string        `yaml:"provider"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SchedulerConfig defines how often watch mode re-runs ingestion.
type SchedulerConfig struct {
	Interval time.Duration  `yaml:"interval"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both token and chat are set.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// MLConfig describes the remote extraction service.
type MLConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"apiKey"`
}

// ChatGPTConfig defines how to contact an OpenAI-compatible chat API.
type ChatGPTConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// CorpusConfig describes one document corpus and its discovery strategy.
type CorpusConfig struct {
	Name    string            `yaml:"name"`
	Path    string            `yaml:"path"`
	Scanner string            `yaml:"scanner"`
	Options map[string]string `yaml:"options"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()
	cfg.resolvePaths()

	if len(cfg.Corpora) == 0 {
		cfg.Corpora = defaultCorpora(cfg.DataPath)
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(dataPathEnv); v != "" {
		c.DataPath = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Graph.DSN = v
	}

	if v := os.Getenv(graphDriverEnv); v != "" {
		c.Graph.Driver = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(chatGPTAPIKeyEnv); v != "" {
		c.ChatGPT.APIKey = v
	}

	if v := os.Getenv(chatGPTModelEnv); v != "" {
		c.ChatGPT.Model = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

// resolvePaths derives file locations left empty from the data path.
func (c *Config) resolvePaths() {
	if c.DataPath == "" {
		c.DataPath = defaultDataPath
	}
	if c.Graph.Driver == "" {
		c.Graph.Driver = "sqlite"
	}
	if c.Graph.DSN == "" && c.Graph.Driver == "sqlite" {
		c.Graph.DSN = filepath.Join(c.DataPath, "graph.db")
	}
	if c.Cache.Path == "" {
		c.Cache.Path = filepath.Join(c.DataPath, "processed_contracts.json")
	}
	if c.Pipeline.ReportDir == "" {
		c.Pipeline.ReportDir = filepath.Join(c.DataPath, "reports")
	}
}

func mergeConfig(base, override Config) Config {
	if override.DataPath != "" {
		base.DataPath = override.DataPath
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Graph.Driver != "" {
		base.Graph.Driver = override.Graph.Driver
	}
	if override.Graph.DSN != "" {
		base.Graph.DSN = override.Graph.DSN
	}

	if override.Cache.Path != "" {
		base.Cache.Path = override.Cache.Path
	}
	if override.Cache.MaxBackups > 0 {
		base.Cache.MaxBackups = override.Cache.MaxBackups
	}

	if override.Pipeline.ProgressEvery > 0 {
		base.Pipeline.ProgressEvery = override.Pipeline.ProgressEvery
	}
	if override.Pipeline.MaxFiles > 0 {
		base.Pipeline.MaxFiles = override.Pipeline.MaxFiles
	}
	if override.Pipeline.MaxChars > 0 {
		base.Pipeline.MaxChars = override.Pipeline.MaxChars
	}
	if override.Pipeline.ReportDir != "" {
		base.Pipeline.ReportDir = override.Pipeline.ReportDir
	}

	if override.Extraction.Provider != "" {
		base.Extraction.Provider = override.Extraction.Provider
	}
	if override.Extraction.Timeout > 0 {
		base.Extraction.Timeout = override.Extraction.Timeout
	}

	if override.Scheduler.Interval > 0 {
		base.Scheduler.Interval = override.Scheduler.Interval
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.ML.Endpoint != "" {
		base.ML.Endpoint = override.ML.Endpoint
	}
	if override.ML.APIKey != "" {
		base.ML.APIKey = override.ML.APIKey
	}

	if override.ChatGPT.Endpoint != "" {
		base.ChatGPT.Endpoint = override.ChatGPT.Endpoint
	}
	if override.ChatGPT.Model != "" {
		base.ChatGPT.Model = override.ChatGPT.Model
	}
	if override.ChatGPT.APIKey != "" {
		base.ChatGPT.APIKey = override.ChatGPT.APIKey
	}

	if len(override.Corpora) > 0 {
		base.Corpora = override.Corpora
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Graph:     GraphConfig{Driver: "sqlite"},
		Cache:     CacheConfig{MaxBackups: 5},
		Pipeline:  PipelineConfig{ProgressEvery: 5, MaxChars: 50_000},
		Scheduler: SchedulerConfig{Interval: 24 * time.Hour, Timezone: defaultTimezone, location: tz},
		Extraction: ExtractionConfig{
			Provider: ProviderChatGPT,
			Timeout:  60 * time.Second,
		},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BotToken: "", ChatID: ""},
		},
		ML: MLConfig{Endpoint: "http://localhost:8000", APIKey: ""},
		ChatGPT: ChatGPTConfig{
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o-mini",
			APIKey:   "",
		},
	}
}

func defaultCorpora(dataPath string) []CorpusConfig {
	return []CorpusConfig{
		{Name: "edgar", Path: filepath.Join(dataPath, "edgar"), Scanner: "tree"},
		{Name: "uploads", Path: filepath.Join(dataPath, "uploads"), Scanner: "flat"},
	}
}
