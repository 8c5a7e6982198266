package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Recognition RecognitionConfig `yaml:"recognition"`
	Gate        GateConfig        `yaml:"gate"`
	Database    DatabaseConfig    `yaml:"database"`
	Detector    ServiceConfig     `yaml:"detector"`
	Embedder    ServiceConfig     `yaml:"embedder"`
	Actuator    ActuatorConfig    `yaml:"actuator"`
	Source      SourceConfig      `yaml:"source"`
	Log         LogConfig         `yaml:"log"`
	Web         WebConfig         `yaml:"web"`
}

type RecognitionConfig struct {
	EmbeddingDim int     `yaml:"embedding_dim"` // 0 lets the first stored record decide
	Threshold    float64 `yaml:"threshold"`     // strict upper bound on Euclidean distance
	Workers      int     `yaml:"workers"`       // regions embedded in parallel per frame
	Index        string  `yaml:"index"`         // exact or hnsw
	ChannelOrder string  `yaml:"channel_order"` // bgr or rgb
	FrameBuffer  int     `yaml:"frame_buffer"`  // frames queued between capture and processing
}

type GateConfig struct {
	Cooldown         time.Duration `yaml:"cooldown"`
	AuthorizedLabels []string      `yaml:"authorized_labels"`
}

type DatabaseConfig struct {
	Path         string `yaml:"path"` // text store, used when URL is empty
	URL          string `yaml:"url"`  // PostgreSQL connection URL
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type ServiceConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ActuatorConfig describes the door controller. Credentials are only ever read from
// the environment or a config file.
type ActuatorConfig struct {
	URL      string        `yaml:"url"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Auth     string        `yaml:"auth"` // none, basic or digest
	Timeout  time.Duration `yaml:"timeout"`
	DryRun   bool          `yaml:"dry_run"`
}

type SourceConfig struct {
	URL      string  `yaml:"url"` // HTTP JPEG snapshot endpoint
	Username string  `yaml:"username"`
	Password string  `yaml:"password"`
	Dir      string  `yaml:"dir"` // replay frames from a directory instead
	FPS      float64 `yaml:"fps"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type WebConfig struct {
	Listen string `yaml:"listen"`
}

// envInt reads an environment variable and parses it as a non-negative integer.
// Returns the current value if the env var is unset, empty, or invalid.
func envInt(key string, val *int) {
	s := os.Getenv(key)
	if s == "" {
		return
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 {
		*val = n
	}
}

func envFloat(key string, val *float64) {
	s := os.Getenv(key)
	if s == "" {
		return
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*val = f
	}
}

func envDuration(key string, val *time.Duration) {
	s := os.Getenv(key)
	if s == "" {
		return
	}
	if d, err := time.ParseDuration(s); err == nil {
		*val = d
	}
}

func envBool(key string, val *bool) {
	s := os.Getenv(key)
	if s == "" {
		return
	}
	if b, err := strconv.ParseBool(s); err == nil {
		*val = b
	}
}

func envString(key string, val *string) {
	if s, ok := os.LookupEnv(key); ok && s != "" {
		*val = s
	}
}

// splitList splits a comma separated list, dropping empty entries.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load builds the configuration from the embedded defaults, then the optional YAML
// file at path, then environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// Embedded file, so this only fails on a broken build.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.Actuator.Auth = strings.ToLower(strings.TrimSpace(cfg.Actuator.Auth))
	return &cfg, nil
}

func (c *Config) applyEnv() {
	envInt("FACEGATE_EMBEDDING_DIM", &c.Recognition.EmbeddingDim)
	envFloat("FACEGATE_THRESHOLD", &c.Recognition.Threshold)
	envInt("FACEGATE_WORKERS", &c.Recognition.Workers)
	envString("FACEGATE_INDEX", &c.Recognition.Index)
	envString("FACEGATE_CHANNEL_ORDER", &c.Recognition.ChannelOrder)
	envInt("FACEGATE_FRAME_BUFFER", &c.Recognition.FrameBuffer)

	envDuration("FACEGATE_COOLDOWN", &c.Gate.Cooldown)
	if s := os.Getenv("FACEGATE_AUTHORIZED_LABELS"); s != "" {
		c.Gate.AuthorizedLabels = splitList(s)
	}

	envString("FACEGATE_DATABASE_PATH", &c.Database.Path)
	envString("FACEGATE_DATABASE_URL", &c.Database.URL)
	envInt("DATABASE_MAX_OPEN_CONNS", &c.Database.MaxOpenConns)
	envInt("DATABASE_MAX_IDLE_CONNS", &c.Database.MaxIdleConns)

	envString("DETECTOR_URL", &c.Detector.URL)
	envDuration("DETECTOR_TIMEOUT", &c.Detector.Timeout)
	envString("EMBEDDER_URL", &c.Embedder.URL)
	envDuration("EMBEDDER_TIMEOUT", &c.Embedder.Timeout)

	envString("ACTUATOR_URL", &c.Actuator.URL)
	envString("ACTUATOR_USERNAME", &c.Actuator.Username)
	envString("ACTUATOR_PASSWORD", &c.Actuator.Password)
	envString("ACTUATOR_AUTH", &c.Actuator.Auth)
	envDuration("ACTUATOR_TIMEOUT", &c.Actuator.Timeout)
	envBool("ACTUATOR_DRY_RUN", &c.Actuator.DryRun)

	envString("SOURCE_URL", &c.Source.URL)
	envString("SOURCE_USERNAME", &c.Source.Username)
	envString("SOURCE_PASSWORD", &c.Source.Password)
	envString("SOURCE_DIR", &c.Source.Dir)
	envFloat("SOURCE_FPS", &c.Source.FPS)

	envString("FACEGATE_LOG_LEVEL", &c.Log.Level)
	envString("FACEGATE_LOG_FORMAT", &c.Log.Format)

	envString("WEB_LISTEN", &c.Web.Listen)
}

// Validate reports every setting the process cannot run with.
func (c *Config) Validate() error {
	var errs []error
	// Negated so NaN fails too.
	if !(c.Recognition.Threshold > 0) || math.IsInf(c.Recognition.Threshold, 1) {
		errs = append(errs, fmt.Errorf("threshold must be a positive finite number, got %v", c.Recognition.Threshold))
	}
	if c.Recognition.EmbeddingDim < 0 {
		errs = append(errs, fmt.Errorf("embedding dim must not be negative, got %d", c.Recognition.EmbeddingDim))
	}
	if c.Recognition.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Recognition.Workers))
	}
	if c.Recognition.FrameBuffer < 1 {
		errs = append(errs, fmt.Errorf("frame buffer must be at least 1, got %d", c.Recognition.FrameBuffer))
	}
	switch c.Recognition.Index {
	case IndexExact, IndexHNSW:
	default:
		errs = append(errs, fmt.Errorf("unknown index %q (want %s or %s)", c.Recognition.Index, IndexExact, IndexHNSW))
	}
	switch strings.ToLower(c.Recognition.ChannelOrder) {
	case "bgr", "rgb":
	default:
		errs = append(errs, fmt.Errorf("unknown channel order %q (want bgr or rgb)", c.Recognition.ChannelOrder))
	}
	if c.Gate.Cooldown < 0 {
		errs = append(errs, fmt.Errorf("cooldown must not be negative, got %s", c.Gate.Cooldown))
	}
	switch strings.ToLower(c.Actuator.Auth) {
	case "", AuthNone, AuthBasic, AuthDigest:
	default:
		errs = append(errs, fmt.Errorf("unknown actuator auth %q", c.Actuator.Auth))
	}
	return errors.Join(errs...)
}

const (
	IndexExact = "exact"
	IndexHNSW  = "hnsw"

	AuthNone   = "none"
	AuthBasic  = "basic"
	AuthDigest = "digest"
)
