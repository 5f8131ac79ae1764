package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	API        APIConfig        `yaml:"api"`
	Recordings RecordingsConfig `yaml:"recordings"`
	Store      StoreConfig      `yaml:"store"`
	Bus        BusConfig        `yaml:"bus"`
	Web        WebConfig        `yaml:"web"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	LLM        LLMConfig        `yaml:"llm"`
	Trace      TraceConfig      `yaml:"trace"`
}

// APIConfig points at the remote game API.
type APIConfig struct {
	RootURL string        `yaml:"root_url"`
	Key     string        `yaml:"key"`
	Timeout time.Duration `yaml:"timeout"`
}

type RecordingsConfig struct {
	Dir     string `yaml:"dir"`
	Enabled bool   `yaml:"enabled"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type BusConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type WebConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type SchedulerConfig struct {
	PollInterval time.Duration  `yaml:"poll_interval"`
	Runs         []ScheduledRun `yaml:"runs"`
}

// ScheduledRun describes one recurring unattended swarm run.
type ScheduledRun struct {
	Name     string   `yaml:"name"`
	Agent    string   `yaml:"agent"`
	Games    []string `yaml:"games"`
	Schedule string   `yaml:"schedule"`
}

type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// LLMConfig configures the model-backed policies.
type LLMConfig struct {
	BaseURL      string `yaml:"base_url"`
	Key          string `yaml:"key"`
	Model        string `yaml:"model"`
	MessageLimit int    `yaml:"message_limit"`
}

type TraceConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

func defaults() Config {
	return Config{
		API: APIConfig{
			RootURL: "http://localhost:8001",
			Timeout: 30 * time.Second,
		},
		Recordings: RecordingsConfig{
			Dir:     "recordings",
			Enabled: true,
		},
		Store: StoreConfig{
			Path: "data/gridswarm.db",
		},
		Bus: BusConfig{
			Port: 4222,
		},
		Web: WebConfig{
			Port: 8080,
		},
		Scheduler: SchedulerConfig{
			PollInterval: 30 * time.Second,
		},
		LLM: LLMConfig{
			BaseURL:      "https://api.openai.com/v1",
			Model:        "gpt-4o-mini",
			MessageLimit: 10,
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("GRIDSWARM_CONFIG")
	if path == "" {
		path = "config/gridswarm.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		// Expand environment variables in YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ARC_API_KEY"); v != "" {
		cfg.API.Key = v
	}
	if v := os.Getenv("GRIDSWARM_API_URL"); v != "" {
		cfg.API.RootURL = v
	}
	if v := os.Getenv("OPENAI_SECRET_KEY"); v != "" {
		cfg.LLM.Key = v
	}
	if v := os.Getenv("GRIDSWARM_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("GRIDSWARM_RECORDINGS_DIR"); v != "" {
		cfg.Recordings.Dir = v
	}
	if v := os.Getenv("GRIDSWARM_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("GRIDSWARM_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("GRIDSWARM_BUS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Bus.Port = port
		}
	}
	if v := os.Getenv("GRIDSWARM_OTEL_ENDPOINT"); v != "" {
		cfg.Trace.Endpoint = v
		cfg.Trace.Enabled = true
	}
}
