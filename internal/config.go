package internal

import (
	"fmt"
	"os"
	"strings"

	"pipehooks/pkg/scm"
	"pipehooks/trigger"

	"gopkg.in/yaml.v3"
)

// AppConfig represents the main application configuration.
type AppConfig struct {
	// Server holds server-specific configuration.
	Server struct {
		Port           int    `yaml:"port"`
		ReadTimeoutMS  int64  `yaml:"read_timeout_ms"`
		WriteTimeoutMS int64  `yaml:"write_timeout_ms"`
		IdleTimeoutMS  int64  `yaml:"idle_timeout_ms"`
		ReadHeaderMS   int64  `yaml:"read_header_timeout_ms"`
		MaxBodyBytes   int64  `yaml:"max_body_bytes"`
		RateLimitRPS   int64  `yaml:"rate_limit_rps"`
		RateLimitBurst int64  `yaml:"rate_limit_burst"`
		MetricsEnabled bool   `yaml:"metrics_enabled"`
		MetricsPath    string `yaml:"metrics_path"`
	} `yaml:"server"`
	// Providers contains the webhook endpoint for each VCS platform.
	Providers struct {
		GitHub    ProviderConfig `yaml:"github"`
		GitLab    ProviderConfig `yaml:"gitlab"`
		Bitbucket ProviderConfig `yaml:"bitbucket"`
		Gerrit    ProviderConfig `yaml:"gerrit"`
	} `yaml:"providers"`
	// Registry selects where enrichment lookups go.
	Registry RegistryConfig `yaml:"registry"`
	// Orchestrator is the backend that runs instantiated resources.
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	// Enrichment tunes registry lookup behavior.
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	// SCM configures commit status reporting back to the platforms.
	SCM scm.Config `yaml:"scm"`
	// Notifications holds configuration for outcome publishing.
	Notifications WatermillConfig `yaml:"notifications"`
}

// Config represents the application configuration including triggers.
type Config struct {
	AppConfig `yaml:",inline"`
	Triggers  []TriggerConfig `yaml:"triggers"`
	// TriggersStrict surfaces filter evaluation errors instead of treating
	// them as non-matches.
	TriggersStrict bool `yaml:"triggers_strict"`
}

// ProviderConfig represents the configuration for a single VCS provider.
// Secret is the HMAC secret (GitHub) or shared token (GitLab); Username and
// Password are only meaningful for Bitbucket.
type ProviderConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Path     string `yaml:"path"`
	Secret   string `yaml:"secret"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// RegistryConfig selects the registry backend: "http" queries the platform
// API service, "database" reads the registry tables directly.
type RegistryConfig struct {
	Mode string `yaml:"mode"`
	HTTP struct {
		BaseURL string `yaml:"base_url"`
		Token   string `yaml:"token"`
	} `yaml:"http"`
	Database struct {
		Driver      string `yaml:"driver"`
		DSN         string `yaml:"dsn"`
		AutoMigrate bool   `yaml:"auto_migrate"`
	} `yaml:"database"`
}

// OrchestratorConfig points at the execution backend's run-creation API.
type OrchestratorConfig struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMS int64  `yaml:"timeout_ms"`
}

// EnrichmentConfig tunes registry lookups.
type EnrichmentConfig struct {
	TimeoutMS int64 `yaml:"timeout_ms"`
}

// TriggerConfig is one trigger definition as written in YAML. When holds
// the filter expression; Template declares the resource to instantiate.
type TriggerConfig struct {
	Name     string                   `yaml:"name"`
	Provider string                   `yaml:"provider"`
	Kind     string                   `yaml:"kind"`
	When     string                   `yaml:"when"`
	Bindings []trigger.Binding        `yaml:"bindings"`
	Template trigger.ResourceTemplate `yaml:"template"`
	Notify   NotifyRouteConfig        `yaml:"notify"`
}

// NotifyRouteConfig routes a trigger's outcomes to a topic, optionally on a
// subset of the configured drivers.
type NotifyRouteConfig struct {
	Topic   string   `yaml:"topic"`
	Drivers []string `yaml:"drivers"`
}

// WatermillConfig holds the configuration for outcome publishing drivers.
type WatermillConfig struct {
	Enabled      bool               `yaml:"enabled"`
	Driver       string             `yaml:"driver"`
	Drivers      []string           `yaml:"drivers"`
	GoChannel    GoChannelConfig    `yaml:"gochannel"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	NATS         NATSConfig         `yaml:"nats"`
	AMQP         AMQPConfig         `yaml:"amqp"`
	SQL          SQLConfig          `yaml:"sql"`
	HTTP         HTTPConfig         `yaml:"http"`
	River        RiverConfig        `yaml:"river"`
	PublishRetry PublishRetryConfig `yaml:"publish_retry"`
}

// GoChannelConfig holds configuration for the in-process pub/sub.
type GoChannelConfig struct {
	OutputChannelBuffer            int64 `yaml:"output_buffer"`
	Persistent                     bool  `yaml:"persistent"`
	BlockPublishUntilSubscriberAck bool  `yaml:"block_publish_until_subscriber_ack"`
}

// KafkaConfig holds configuration for the Kafka driver.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

// NATSConfig holds configuration for the NATS streaming driver.
type NATSConfig struct {
	ClusterID string `yaml:"cluster_id"`
	ClientID  string `yaml:"client_id"`
	URL       string `yaml:"url"`
}

// AMQPConfig holds configuration for the AMQP driver.
type AMQPConfig struct {
	URL  string `yaml:"url"`
	Mode string `yaml:"mode"`
}

// SQLConfig holds configuration for the SQL driver.
type SQLConfig struct {
	Driver           string `yaml:"driver"`
	DSN              string `yaml:"dsn"`
	Dialect          string `yaml:"dialect"`
	InitializeSchema bool   `yaml:"initialize_schema"`
}

// HTTPConfig holds configuration for the HTTP driver.
type HTTPConfig struct {
	BaseURL string `yaml:"base_url"`
	Mode    string `yaml:"mode"`
}

// RiverConfig holds configuration for the river job-queue driver.
type RiverConfig struct {
	DSN         string   `yaml:"dsn"`
	Queue       string   `yaml:"queue"`
	Kind        string   `yaml:"kind"`
	MaxAttempts int      `yaml:"max_attempts"`
	Priority    int      `yaml:"priority"`
	Tags        []string `yaml:"tags"`
}

type PublishRetryConfig struct {
	Attempts int `yaml:"attempts"`
	DelayMS  int `yaml:"delay_ms"`
}

// LoadConfig loads the full application configuration, including triggers,
// from a YAML file. It expands environment variables, applies defaults, and
// normalizes trigger definitions.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, err
	}

	applyDefaults(&cfg.AppConfig)
	normalized, err := normalizeTriggers(cfg.Triggers)
	if err != nil {
		return cfg, err
	}
	cfg.Triggers = normalized

	return cfg, nil
}

// CompileTriggers turns raw trigger definitions into router specs. Filter
// expressions are compiled here so a broken expression fails startup, not a
// delivery.
func CompileTriggers(cfgs []TriggerConfig) ([]trigger.Spec, error) {
	specs := make([]trigger.Spec, 0, len(cfgs))
	for _, cfg := range cfgs {
		filter, err := trigger.CompileFilter(cfg.When)
		if err != nil {
			return nil, fmt.Errorf("trigger %q: compile %q: %w", cfg.Name, cfg.When, err)
		}
		specs = append(specs, trigger.Spec{
			Name:          cfg.Name,
			Provider:      cfg.Provider,
			Kind:          cfg.Kind,
			Filter:        filter,
			Bindings:      cfg.Bindings,
			Template:      cfg.Template,
			NotifyTopic:   cfg.Notify.Topic,
			NotifyDrivers: cfg.Notify.Drivers,
		})
	}
	return specs, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeoutMS == 0 {
		cfg.Server.ReadTimeoutMS = 5000
	}
	if cfg.Server.WriteTimeoutMS == 0 {
		cfg.Server.WriteTimeoutMS = 10000
	}
	if cfg.Server.IdleTimeoutMS == 0 {
		cfg.Server.IdleTimeoutMS = 60000
	}
	if cfg.Server.ReadHeaderMS == 0 {
		cfg.Server.ReadHeaderMS = 5000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	if cfg.Server.MetricsPath == "" {
		cfg.Server.MetricsPath = "/metrics"
	}
	if cfg.Providers.GitHub.Path == "" {
		cfg.Providers.GitHub.Path = "/webhooks/github"
	}
	if cfg.Providers.GitLab.Path == "" {
		cfg.Providers.GitLab.Path = "/webhooks/gitlab"
	}
	if cfg.Providers.Bitbucket.Path == "" {
		cfg.Providers.Bitbucket.Path = "/webhooks/bitbucket"
	}
	if cfg.Providers.Gerrit.Path == "" {
		cfg.Providers.Gerrit.Path = "/webhooks/gerrit"
	}
	if cfg.Registry.Mode == "" {
		cfg.Registry.Mode = "http"
	}
	if cfg.Registry.Database.Driver == "" {
		cfg.Registry.Database.Driver = "postgres"
	}
	if cfg.Orchestrator.TimeoutMS == 0 {
		cfg.Orchestrator.TimeoutMS = 10000
	}
	if cfg.Enrichment.TimeoutMS == 0 {
		cfg.Enrichment.TimeoutMS = 3000
	}
	if cfg.SCM.Context == "" {
		cfg.SCM.Context = "pipehooks"
	}
	if cfg.Notifications.Driver == "" {
		cfg.Notifications.Driver = "gochannel"
	}
	if cfg.Notifications.GoChannel.OutputChannelBuffer == 0 {
		cfg.Notifications.GoChannel.OutputChannelBuffer = 64
	}
	if cfg.Notifications.HTTP.Mode == "" {
		cfg.Notifications.HTTP.Mode = "topic_url"
	}
	if cfg.Notifications.River.Queue == "" {
		cfg.Notifications.River.Queue = "default"
	}
	if cfg.Notifications.River.Kind == "" {
		cfg.Notifications.River.Kind = "pipehooks.outcome"
	}
	if cfg.Notifications.River.MaxAttempts == 0 {
		cfg.Notifications.River.MaxAttempts = 25
	}
	if cfg.Notifications.PublishRetry.Attempts == 0 {
		cfg.Notifications.PublishRetry.Attempts = 3
	}
	if cfg.Notifications.PublishRetry.DelayMS == 0 {
		cfg.Notifications.PublishRetry.DelayMS = 500
	}
}

func normalizeTriggers(triggers []TriggerConfig) ([]TriggerConfig, error) {
	out := make([]TriggerConfig, 0, len(triggers))
	for i := range triggers {
		t := triggers[i]
		t.Name = strings.TrimSpace(t.Name)
		t.Provider = strings.ToLower(strings.TrimSpace(t.Provider))
		t.Kind = strings.TrimSpace(t.Kind)
		t.When = strings.TrimSpace(t.When)
		if t.Name == "" || t.Provider == "" || t.When == "" {
			return nil, fmt.Errorf("trigger %d is missing name, provider or when", i)
		}
		if t.Kind == "" {
			t.Kind = "build"
		}
		if len(t.Notify.Drivers) > 0 {
			drivers := make([]string, 0, len(t.Notify.Drivers))
			for _, driver := range t.Notify.Drivers {
				trimmed := strings.TrimSpace(driver)
				if trimmed != "" {
					drivers = append(drivers, trimmed)
				}
			}
			t.Notify.Drivers = drivers
		}
		out = append(out, t)
	}
	return out, nil
}
