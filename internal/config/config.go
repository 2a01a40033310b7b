package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel       string `yaml:"log_level"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	PrometheusBind string `yaml:"prometheus_bind"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type EventStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionMode string `yaml:"retention_mode"`
	RetentionDays int    `yaml:"retention_days"`
	MaxSessions   int    `yaml:"max_sessions"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

// EngineConfig selects and tunes the recognition engine backend.
type EngineConfig struct {
	Mode            string `yaml:"mode"`            // mock, stream
	RecognizerMode  string `yaml:"recognizer_mode"` // mock, exec (stream engine only)
	Command         string `yaml:"command"`
	ModelPath       string `yaml:"model_path"`
	SampleRate      int    `yaml:"sample_rate"`
	Channels        int    `yaml:"channels"`
	FrameDurationMS int    `yaml:"frame_duration_ms"`
	PartialEveryMS  int    `yaml:"partial_every_ms"`
}

// SessionConfig carries the daemon-level defaults for the recognition
// session. They seed the controller's active configuration; callers can
// still override per start/restart through the control surface.
type SessionConfig struct {
	Continuous      bool   `yaml:"continuous"`
	InterimResults  bool   `yaml:"interim_results"`
	Language        string `yaml:"language"`
	Grammar         string `yaml:"grammar"`
	MaxAlternatives uint   `yaml:"max_alternatives"`
	Pattern         string `yaml:"pattern"`
	StartOnInit     bool   `yaml:"start_on_init"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	EventStore  EventStoreConfig `yaml:"event_store"`
	Engine      EngineConfig     `yaml:"engine"`
	Session     SessionConfig    `yaml:"session"`
}

func Default() Config {
	return Config{
		RuntimeName: "hark-runtime",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:       "info",
			OTLPEndpoint:   "",
			OTLPInsecure:   true,
			PrometheusBind: ":9091",
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		EventStore: EventStoreConfig{
			Path:          "./data/hark-events.db",
			RetentionMode: "session",
			RetentionDays: 30,
			MaxSessions:   10000,
		},
		Engine: EngineConfig{
			Mode:            "mock",
			RecognizerMode:  "mock",
			SampleRate:      16000,
			Channels:        1,
			FrameDurationMS: 20,
			PartialEveryMS:  800,
		},
		Session: SessionConfig{
			Continuous:      true,
			InterimResults:  true,
			Language:        "en-US",
			Grammar:         "#JSGF V1.0;",
			MaxAlternatives: 1,
			Pattern:         `(?i)\bhey hark\b`,
			StartOnInit:     true,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "HARK_RUNTIME_NAME")
	overrideString(&cfg.Environment, "HARK_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "HARK_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "HARK_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "HARK_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "HARK_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "HARK_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Telemetry.PrometheusBind, "HARK_TELEMETRY_PROMETHEUS_BIND")
	overrideBool(&cfg.Bus.Embedded, "HARK_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "HARK_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "HARK_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "HARK_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "HARK_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "HARK_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "HARK_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "HARK_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.EventStore.Path, "HARK_EVENT_STORE_PATH")
	overrideString(&cfg.EventStore.RetentionMode, "HARK_EVENT_STORE_RETENTION_MODE")
	overrideInt(&cfg.EventStore.RetentionDays, "HARK_EVENT_STORE_RETENTION_DAYS")
	overrideInt(&cfg.EventStore.MaxSessions, "HARK_EVENT_STORE_MAX_SESSIONS")
	overrideBool(&cfg.EventStore.VacuumOnStart, "HARK_EVENT_STORE_VACUUM_ON_START")
	overrideString(&cfg.Engine.Mode, "HARK_ENGINE_MODE")
	overrideString(&cfg.Engine.RecognizerMode, "HARK_ENGINE_RECOGNIZER_MODE")
	overrideString(&cfg.Engine.Command, "HARK_ENGINE_COMMAND")
	overrideString(&cfg.Engine.ModelPath, "HARK_ENGINE_MODEL_PATH")
	overrideInt(&cfg.Engine.SampleRate, "HARK_ENGINE_SAMPLE_RATE")
	overrideInt(&cfg.Engine.Channels, "HARK_ENGINE_CHANNELS")
	overrideInt(&cfg.Engine.FrameDurationMS, "HARK_ENGINE_FRAME_DURATION_MS")
	overrideInt(&cfg.Engine.PartialEveryMS, "HARK_ENGINE_PARTIAL_EVERY_MS")
	overrideBool(&cfg.Session.Continuous, "HARK_SESSION_CONTINUOUS")
	overrideBool(&cfg.Session.InterimResults, "HARK_SESSION_INTERIM_RESULTS")
	overrideString(&cfg.Session.Language, "HARK_SESSION_LANGUAGE")
	overrideString(&cfg.Session.Grammar, "HARK_SESSION_GRAMMAR")
	overrideUint(&cfg.Session.MaxAlternatives, "HARK_SESSION_MAX_ALTERNATIVES")
	overrideString(&cfg.Session.Pattern, "HARK_SESSION_PATTERN")
	overrideBool(&cfg.Session.StartOnInit, "HARK_SESSION_START_ON_INIT")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideUint(target *uint, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseUint(value, 10, 64); err == nil {
			*target = uint(parsed)
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.EventStore.Path == "" {
		return errors.New("event_store.path must not be empty")
	}
	switch cfg.EventStore.RetentionMode {
	case "ephemeral", "session", "persistent":
		// ok
	default:
		return errors.New("event_store.retention_mode must be one of ephemeral|session|persistent")
	}
	if cfg.EventStore.RetentionDays < 0 {
		return errors.New("event_store.retention_days must be >= 0")
	}
	if cfg.Telemetry.PrometheusBind == "" {
		return errors.New("telemetry.prometheus_bind must not be empty")
	}
	switch cfg.Engine.Mode {
	case "mock", "stream":
	default:
		return errors.New("engine.mode must be one of mock|stream")
	}
	if cfg.Engine.Mode == "stream" {
		if cfg.Engine.SampleRate <= 0 {
			return errors.New("engine.sample_rate must be positive")
		}
		if cfg.Engine.Channels <= 0 {
			return errors.New("engine.channels must be positive")
		}
		switch cfg.Engine.RecognizerMode {
		case "mock", "exec":
		default:
			return errors.New("engine.recognizer_mode must be one of mock|exec")
		}
		if cfg.Engine.RecognizerMode == "exec" && cfg.Engine.Command == "" {
			return errors.New("engine.command must be set when recognizer_mode=exec")
		}
	}
	if cfg.Session.Language == "" {
		return errors.New("session.language must not be empty")
	}
	if cfg.Session.MaxAlternatives == 0 {
		return errors.New("session.max_alternatives must be >= 1")
	}
	if cfg.Session.Pattern != "" {
		if _, err := regexp.Compile(cfg.Session.Pattern); err != nil {
			return fmt.Errorf("session.pattern is not a valid expression: %w", err)
		}
	}
	return nil
}
