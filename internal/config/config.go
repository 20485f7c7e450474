// Package config parses and validates the controller's runtime
// configuration, sourced from CLI flags with environment variable
// fallback, in the pattern of an options struct with AddFlags/Validate.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/magicorntech/epictetus/internal/node"
)

// Options holds every configuration value the controller needs. AddFlags
// seeds each field's default from its environment variable (or the
// documented default when unset); a parsed flag overrides that value.
type Options struct {
	CloudflareAPIToken string
	K8sConfigPath      string

	SyncInterval   time.Duration
	HealthInterval time.Duration

	LogLevel  string
	LogFormat string

	MaxRetries uint
	RetryDelay time.Duration

	EnableHealthServer bool
	HealthPort         int

	DeletionTaints []string
}

// AddFlags registers every flag, seeded from the matching environment
// variable so either surface works — flags win when both are set.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.CloudflareAPIToken, "cloudflare-api-token", envString("CLOUDFLARE_API_TOKEN", ""), "CloudFlare API token with DNS edit scope")
	fs.StringVar(&o.K8sConfigPath, "k8s-config-path", envString("K8S_CONFIG_PATH", ""), "path to a kubeconfig file; empty uses in-cluster credentials")
	fs.DurationVar(&o.SyncInterval, "dns-sync-interval", envDuration("DNS_SYNC_INTERVAL", 60*time.Second), "interval between full DNS reconciliation sweeps")
	fs.DurationVar(&o.HealthInterval, "health-check-interval", envDuration("HEALTH_CHECK_INTERVAL", 30*time.Second), "interval between substrate health checks")
	fs.StringVar(&o.LogLevel, "log-level", envString("LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	fs.StringVar(&o.LogFormat, "log-format", envString("LOG_FORMAT", "console"), "log encoding: console or json")
	fs.UintVar(&o.MaxRetries, "max-retries", uint(envInt("MAX_RETRIES", 3)), "retry attempts for transient provider/cluster errors")
	fs.DurationVar(&o.RetryDelay, "retry-delay", envDuration("RETRY_DELAY", 5*time.Second), "fixed wait between retries")
	fs.BoolVar(&o.EnableHealthServer, "enable-health-server", envBool("ENABLE_HEALTH_SERVER", true), "serve /healthz, /readyz, /metrics, /state")
	fs.IntVar(&o.HealthPort, "health-port", envInt("HEALTH_PORT", 8080), "port for the http reporter")
	fs.StringSliceVar(&o.DeletionTaints, "deletion-taints", envStringSlice("DELETION_TAINTS", []string(node.DefaultDeletionTaintSet)), "comma-separated taint keys that together mark a node as departing")
}

// Validate accumulates every configuration error rather than failing
// on the first, so a misconfigured deployment sees the complete list
// in one log line.
func (o *Options) Validate() []error {
	var errs []error
	if o.CloudflareAPIToken == "" {
		errs = append(errs, fmt.Errorf("cloudflare-api-token (or CLOUDFLARE_API_TOKEN) is required"))
	}
	if o.SyncInterval < 10*time.Second {
		errs = append(errs, fmt.Errorf("dns-sync-interval must be at least 10s, got %s", o.SyncInterval))
	}
	if o.HealthInterval < 5*time.Second {
		errs = append(errs, fmt.Errorf("health-check-interval must be at least 5s, got %s", o.HealthInterval))
	}
	if o.LogFormat != "console" && o.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log-format must be console or json, got %q", o.LogFormat))
	}
	return errs
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	seconds, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func envStringSlice(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
