package telemetry

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultServiceName is reported when no service name is configured.
const DefaultServiceName = "rstd"

const (
	envEndpoint    = "RSTD_OTEL_ENDPOINT"
	envInsecure    = "RSTD_OTEL_INSECURE"
	envService     = "RSTD_OTEL_SERVICE"
	envDialTimeout = "RSTD_OTEL_DIAL_TIMEOUT"
	envHeaders     = "RSTD_OTEL_HEADERS"
)

// Config controls span export.
type Config struct {
	Endpoint    string
	Insecure    bool
	ServiceName string
	Version     string
	DialTimeout time.Duration
	Headers     map[string]string
	RunID       string
}

// Enabled reports whether spans are exported to a collector.
func (c Config) Enabled() bool {
	return strings.TrimSpace(c.Endpoint) != ""
}

// ConfigFromEnv reads the exporter settings from the environment. getenv is
// usually os.Getenv.
func ConfigFromEnv(getenv func(string) string) Config {
	cfg := Config{
		Endpoint:    strings.TrimSpace(getenv(envEndpoint)),
		ServiceName: strings.TrimSpace(getenv(envService)),
	}
	if v, err := strconv.ParseBool(strings.TrimSpace(getenv(envInsecure))); err == nil {
		cfg.Insecure = v
	}
	if v, err := time.ParseDuration(strings.TrimSpace(getenv(envDialTimeout))); err == nil {
		cfg.DialTimeout = v
	}
	if headers, err := ParseHeaders(getenv(envHeaders)); err == nil {
		cfg.Headers = headers
	}
	return cfg
}

// Merge fills the zero fields of c from other.
func (c Config) Merge(other Config) Config {
	if c.Endpoint == "" {
		c.Endpoint = other.Endpoint
	}
	if !c.Insecure {
		c.Insecure = other.Insecure
	}
	if c.ServiceName == "" {
		c.ServiceName = other.ServiceName
	}
	if c.Version == "" {
		c.Version = other.Version
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = other.DialTimeout
	}
	if len(c.Headers) == 0 {
		c.Headers = other.Headers
	}
	if c.RunID == "" {
		c.RunID = other.RunID
	}
	return c
}

// ParseHeaders parses "key=value, other=value" lists.
func ParseHeaders(raw string) (map[string]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	out := map[string]string{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid header %q: expected key=value", part)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid header %q: empty key", part)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}
