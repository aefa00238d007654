// Package config defines environment-specific settings for the R2k PDF Servicio.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Build variables, injected at compile time
var (
	BuildEnvironment = "local"
	BuildDate        = "unknown"
	BuildTime        = "unknown"
	// ServiceName is used for logging and as part of the log file path.
	ServiceName = "R2k_PDFServicio_Unknown"
	// PasswordHashB64 is a base64-encoded bcrypt hash injected via ldflags.
	// If empty, dashboard authentication is disabled (dev mode).
	PasswordHashB64 = ""
	// AuthToken is injected via ldflags.
	// If empty, print job submissions are accepted without token validation.
	AuthToken = ""
	// ServerPort is the default port for the service, can be overridden by environment config.
	ServerPort = "8767"
	// AllowedOrigins is a comma-separated list of allowed origins injected via ldflags.
	// Example: "https://pos.example.com,http://localhost:*"
	AllowedOrigins = ""
)

// OverridesFileName is looked up next to the service binary.
const OverridesFileName = "pdfservicio.yaml"

// Environment holds environment-specific settings
type Environment struct {
	// Identificación
	Name        string
	ServiceName string

	// Red
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Cola
	QueueCapacity int
	JobsPerMinute int

	// Logging
	Verbose bool

	// Impresión
	DefaultPrinter      string
	MaxConcurrentPrints int
	PrintTimeout        time.Duration
	// SumatraPath overrides the SumatraPDF.exe shipped next to the binary.
	SumatraPath string

	// Security
	AllowedOrigins []string
}

// LogPath returns the full log file path for this environment.
// Uses the convention: <programData>/<ServiceName>/<ServiceName>.log
func (e Environment) LogPath(programData string) string {
	return filepath.Join(programData, e.ServiceName, e.ServiceName+".log")
}

// Validate reports settings the service cannot run with.
func (e Environment) Validate() error {
	if e.MaxConcurrentPrints < 1 {
		return fmt.Errorf("max concurrent prints must be at least 1, got %d", e.MaxConcurrentPrints)
	}
	if e.QueueCapacity < 1 {
		return fmt.Errorf("queue capacity must be at least 1, got %d", e.QueueCapacity)
	}
	if e.JobsPerMinute < 1 {
		return fmt.Errorf("jobs per minute must be at least 1, got %d", e.JobsPerMinute)
	}
	if e.PrintTimeout < 0 {
		return fmt.Errorf("print timeout must be non-negative")
	}
	return nil
}

// environments defines available deployment configurations
var environments = map[string]Environment{
	"remote": {
		Name:                "REMOTO",
		ServiceName:         ServiceName,
		ListenAddr:          "0.0.0.0:" + ServerPort,
		ReadTimeout:         15 * time.Second,
		WriteTimeout:        15 * time.Second,
		IdleTimeout:         60 * time.Second,
		QueueCapacity:       50,
		JobsPerMinute:       30,
		Verbose:             false,
		DefaultPrinter:      "",
		MaxConcurrentPrints: 1,
		PrintTimeout:        time.Minute,
		// By default, restrict to localhost and file (Electron) for security
		AllowedOrigins: []string{"http://localhost:*", "https://localhost:*", "file://*"},
	},
	"local": {
		Name:                "LOCAL",
		ServiceName:         ServiceName,
		ListenAddr:          "localhost:" + ServerPort,
		ReadTimeout:         30 * time.Second,
		WriteTimeout:        30 * time.Second,
		IdleTimeout:         120 * time.Second,
		QueueCapacity:       50,
		JobsPerMinute:       120,
		Verbose:             true,
		DefaultPrinter:      "Microsoft Print to PDF",
		MaxConcurrentPrints: 2,
		PrintTimeout:        time.Minute,
		// Allow all in local dev mode for convenience, but can be overridden
		AllowedOrigins: []string{"*"},
	},
}

// GetEnvironment returns config for the specified environment.
func GetEnvironment(env string) Environment {
	cfg, ok := environments[env]
	if !ok {
		log.Printf("[!] Unknown environment '%s', defaulting to 'local'", env)
		cfg = environments["local"]
	}

	// Override allowed origins from ldflags if provided
	if AllowedOrigins != "" {
		cfg.AllowedOrigins = strings.Split(AllowedOrigins, ",")
	}

	return cfg
}

// overrides mirrors the YAML file; nil fields keep the compiled-in value.
type overrides struct {
	ListenAddr          *string        `yaml:"listen_addr"`
	QueueCapacity       *int           `yaml:"queue_capacity"`
	JobsPerMinute       *int           `yaml:"jobs_per_minute"`
	Verbose             *bool          `yaml:"verbose"`
	DefaultPrinter      *string        `yaml:"default_printer"`
	MaxConcurrentPrints *int           `yaml:"max_concurrent_prints"`
	PrintTimeout        *time.Duration `yaml:"print_timeout"`
	SumatraPath         *string        `yaml:"sumatra_path"`
	AllowedOrigins      []string       `yaml:"allowed_origins"`
}

// LoadOverrides applies the YAML file at path on top of env.
// A missing file leaves env untouched.
func LoadOverrides(env Environment, path string) (Environment, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return env, nil
		}
		return env, fmt.Errorf("failed to read config file: %w", err)
	}

	var o overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return env, fmt.Errorf("failed to parse config file: %w", err)
	}

	if o.ListenAddr != nil {
		env.ListenAddr = *o.ListenAddr
	}
	if o.QueueCapacity != nil {
		env.QueueCapacity = *o.QueueCapacity
	}
	if o.JobsPerMinute != nil {
		env.JobsPerMinute = *o.JobsPerMinute
	}
	if o.Verbose != nil {
		env.Verbose = *o.Verbose
	}
	if o.DefaultPrinter != nil {
		env.DefaultPrinter = *o.DefaultPrinter
	}
	if o.MaxConcurrentPrints != nil {
		env.MaxConcurrentPrints = *o.MaxConcurrentPrints
	}
	if o.PrintTimeout != nil {
		env.PrintTimeout = *o.PrintTimeout
	}
	if o.SumatraPath != nil {
		env.SumatraPath = *o.SumatraPath
	}
	if len(o.AllowedOrigins) > 0 {
		env.AllowedOrigins = o.AllowedOrigins
	}

	return env, nil
}

// DefaultOverridesPath returns the overrides file next to the running binary.
func DefaultOverridesPath() string {
	exe, err := os.Executable()
	if err != nil {
		return OverridesFileName
	}
	return filepath.Join(filepath.Dir(exe), OverridesFileName)
}
