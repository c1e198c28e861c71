// Package config loads the console configuration from a local environment file
// and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment is one of the two backends the console can attach to.
type Environment string

const (
	Staging    Environment = "staging"
	Production Environment = "production"
)

// Environments lists the supported environments in menu order.
var Environments = []Environment{Staging, Production}

// ParseEnvironment validates a user supplied environment name.
func ParseEnvironment(s string) (Environment, error) {
	switch env := Environment(strings.ToLower(strings.TrimSpace(s))); env {
	case Staging, Production:
		return env, nil
	default:
		return "", fmt.Errorf("unknown environment %q (expected staging or production)", s)
	}
}

// IsProduction reports whether env requires the production confirmation gates.
func (e Environment) IsProduction() bool {
	return e == Production
}

func (e Environment) keyPrefix() string {
	return strings.ToUpper(string(e))
}

// ClusterAccess holds the bearer-token credentials for the cluster API server.
// It is read-only and shared by every tunnel and job of a process.
type ClusterAccess struct {
	Server string
	Token  string
}

// EnvironmentConfig holds the per-environment database and pod identity.
type EnvironmentConfig struct {
	Namespace  string
	PodName    string
	PodPort    int
	DBName     string
	DBUser     string
	DBPassword string
}

// JobConfig holds the defaults applied to every remote job.
type JobConfig struct {
	Image        string
	PollInterval time.Duration
	Timeout      time.Duration
}

// Config holds all configuration values for the console.
type Config struct {
	Cluster    ClusterAccess
	Staging    EnvironmentConfig
	Production EnvironmentConfig

	Jobs JobConfig

	// Bounded wait for the local tunnel port to accept connections
	TunnelTimeout time.Duration

	// Path or name of the kubectl executable used for port forwarding
	KubectlPath string

	// OTLP collector address; tracing is disabled when empty
	OTLPEndpoint string

	// Default operator name offered at login
	Operator string
}

// Environment returns the settings for env.
func (c *Config) Environment(env Environment) (EnvironmentConfig, error) {
	switch env {
	case Staging:
		return c.Staging, nil
	case Production:
		return c.Production, nil
	default:
		return EnvironmentConfig{}, fmt.Errorf("unknown environment %q", env)
	}
}

// Namespace returns the cluster namespace used for jobs launched in env.
func (c *Config) Namespace(env Environment) string {
	ec, err := c.Environment(env)
	if err != nil {
		return ""
	}
	return ec.Namespace
}

// Defaults applied when the optional keys are absent.
const (
	DefaultJobImage      = "curlimages/curl:8.1.1"
	DefaultPollInterval  = 3 * time.Second
	DefaultJobTimeout    = 120 * time.Second
	DefaultTunnelTimeout = 15 * time.Second
	DefaultKubectlPath   = "kubectl"
)

var envSuffixes = []string{"NAMESPACE", "POD_NAME", "POD_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD"}

// RequiredKeys returns every key that must be present for Load to succeed.
func RequiredKeys() []string {
	keys := []string{"KUBE_SERVER", "KUBE_TOKEN"}
	for _, env := range Environments {
		for _, suffix := range envSuffixes {
			keys = append(keys, env.keyPrefix()+"_"+suffix)
		}
	}
	return keys
}

// MissingKeysError lists every required key that was absent or empty.
type MissingKeysError struct {
	Keys []string
}

func (e *MissingKeysError) Error() string {
	return fmt.Sprintf("missing required configuration keys: %s", strings.Join(e.Keys, ", "))
}

// Load reads envFile (if it exists) into the process environment and builds
// the configuration from the environment. Variables already set in the
// process environment take precedence over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds the configuration from an already populated viper instance.
func FromViper(v *viper.Viper) (*Config, error) {
	v.SetDefault("JOB_IMAGE", DefaultJobImage)
	v.SetDefault("JOB_POLL_INTERVAL", DefaultPollInterval)
	v.SetDefault("JOB_TIMEOUT", DefaultJobTimeout)
	v.SetDefault("TUNNEL_TIMEOUT", DefaultTunnelTimeout)
	v.SetDefault("KUBECTL_PATH", DefaultKubectlPath)

	var missing []string
	for _, key := range RequiredKeys() {
		if strings.TrimSpace(v.GetString(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingKeysError{Keys: missing}
	}

	cfg := &Config{
		Cluster: ClusterAccess{
			Server: v.GetString("KUBE_SERVER"),
			Token:  v.GetString("KUBE_TOKEN"),
		},
		Jobs: JobConfig{
			Image:        v.GetString("JOB_IMAGE"),
			PollInterval: v.GetDuration("JOB_POLL_INTERVAL"),
			Timeout:      v.GetDuration("JOB_TIMEOUT"),
		},
		TunnelTimeout: v.GetDuration("TUNNEL_TIMEOUT"),
		KubectlPath:   v.GetString("KUBECTL_PATH"),
		OTLPEndpoint:  v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		Operator:      v.GetString("OPERATOR"),
	}

	var err error
	if cfg.Staging, err = loadEnvironment(v, Staging); err != nil {
		return nil, err
	}
	if cfg.Production, err = loadEnvironment(v, Production); err != nil {
		return nil, err
	}

	if cfg.Jobs.PollInterval <= 0 {
		return nil, fmt.Errorf("invalid JOB_POLL_INTERVAL: must be positive")
	}
	if cfg.Jobs.Timeout < cfg.Jobs.PollInterval {
		return nil, fmt.Errorf("invalid JOB_TIMEOUT: must be at least JOB_POLL_INTERVAL")
	}
	if cfg.TunnelTimeout <= 0 {
		return nil, fmt.Errorf("invalid TUNNEL_TIMEOUT: must be positive")
	}

	return cfg, nil
}

func loadEnvironment(v *viper.Viper, env Environment) (EnvironmentConfig, error) {
	prefix := env.keyPrefix() + "_"

	portKey := prefix + "POD_PORT"
	port, err := strconv.Atoi(strings.TrimSpace(v.GetString(portKey)))
	if err != nil || port <= 0 || port > 65535 {
		return EnvironmentConfig{}, fmt.Errorf("invalid %s: %q is not a port number", portKey, v.GetString(portKey))
	}

	return EnvironmentConfig{
		Namespace:  v.GetString(prefix + "NAMESPACE"),
		PodName:    v.GetString(prefix + "POD_NAME"),
		PodPort:    port,
		DBName:     v.GetString(prefix + "DB_NAME"),
		DBUser:     v.GetString(prefix + "DB_USER"),
		DBPassword: v.GetString(prefix + "DB_PASSWORD"),
	}, nil
}
