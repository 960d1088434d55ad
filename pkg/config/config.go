// Package config loads and validates the diskdiag configuration file.
//
// Configuration is a single typed record assembled once at startup and passed
// into each component constructor. Missing required fields fail fast before
// any diagnosis session starts.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the config file lives on a deployed box.
const DefaultPath = "/etc/diskdiag/config.yaml"

// Database holds the monitoring (Observium) MySQL connection settings.
type Database struct {
	Host     string `yaml:"host" validate:"required"`
	Port     int    `yaml:"port" validate:"required"`
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password" validate:"required"`
	Name     string `yaml:"name" validate:"required"`
}

// DSN renders the go-sql-driver connection string.
func (d Database) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&timeout=10s", d.User, d.Password, d.Host, d.Port, d.Name)
}

// LLM holds the chat endpoint settings.
type LLM struct {
	Provider      string        `yaml:"provider" validate:"required,oneof=openai ollama"`
	URL           string        `yaml:"url" validate:"required,url"`
	Model         string        `yaml:"model" validate:"required"`
	APIKey        string        `yaml:"api_key"`
	Timeout       time.Duration `yaml:"timeout"`
	VerifyTLS     *bool         `yaml:"verify_tls"`
	Temperature   float64       `yaml:"temperature"`
	ContextWindow int           `yaml:"context_window"`
	TopP          float64       `yaml:"top_p"`
	TopK          int           `yaml:"top_k"`
	RepeatPenalty float64       `yaml:"repeat_penalty"`
	MaxTokens     int           `yaml:"max_tokens"`
	Stream        bool          `yaml:"stream"`
}

// InsecureTLS reports whether certificate verification is disabled.
// Verification is enforced unless the config explicitly opts out.
func (l LLM) InsecureTLS() bool {
	return l.VerifyTLS != nil && !*l.VerifyTLS
}

// SSH holds the jump-host relay settings.
type SSH struct {
	JumpHost     string        `yaml:"jump_host" validate:"required"`
	User         string        `yaml:"user" validate:"required"`
	KeyFile      string        `yaml:"key_file" validate:"required"`
	KnownHosts   string        `yaml:"known_hosts"`
	InsecureHost bool          `yaml:"insecure_host_key"`
	RelayCommand string        `yaml:"relay_command"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Session holds the diagnosis loop tunables.
type Session struct {
	MinCommands         int     `yaml:"min_commands"`
	MaxIterations       int     `yaml:"max_iterations"`
	MaxAttempts         int     `yaml:"max_attempts"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	OutputBudget        int     `yaml:"output_budget"`
	AlertThreshold      int     `yaml:"alert_threshold"`
}

// MySQLCredential is one per-host credential set injected into mysql-family
// diagnostic commands.
type MySQLCredential struct {
	User     string `yaml:"user" validate:"required"`
	Password string `yaml:"password" validate:"required"`
}

// Config is the root configuration record.
type Config struct {
	Database  Database                   `yaml:"database" validate:"required"`
	LLM       LLM                        `yaml:"llm" validate:"required"`
	SSH       SSH                        `yaml:"ssh" validate:"required"`
	Session   Session                    `yaml:"session"`
	MySQL     map[string]MySQLCredential `yaml:"mysql_credentials" validate:"dive"`
	AuditFile string                     `yaml:"audit_file"`
}

// Load reads, overlays, defaults and validates the configuration at path.
// A .env file next to the config (if present) supplies secret overrides via
// DISKDIAG_DB_PASSWORD and DISKDIAG_LLM_API_KEY.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	// Secrets may be kept out of the YAML file.
	_ = godotenv.Load() // missing .env is fine
	if v := os.Getenv("DISKDIAG_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DISKDIAG_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}

	cfg.applyDefaults()

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 5 * time.Minute // model inference can be slow
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 4000
	}
	if c.SSH.Timeout == 0 {
		c.SSH.Timeout = 90 * time.Second
	}
	if c.SSH.RelayCommand == "" {
		c.SSH.RelayCommand = "cn"
	}
	if c.Session.MinCommands == 0 {
		c.Session.MinCommands = 10
	}
	if c.Session.MaxIterations == 0 {
		c.Session.MaxIterations = 50
	}
	if c.Session.MaxAttempts == 0 {
		c.Session.MaxAttempts = 3
	}
	if c.Session.SimilarityThreshold == 0 {
		c.Session.SimilarityThreshold = 0.7
	}
	if c.Session.OutputBudget == 0 {
		c.Session.OutputBudget = 3000
	}
	if c.Session.AlertThreshold == 0 {
		c.Session.AlertThreshold = 80
	}
	if c.AuditFile == "" {
		c.AuditFile = "/var/log/diskdiag/audit.log"
	}
}
