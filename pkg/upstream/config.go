package upstream

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode selects how requests are authenticated and which base URL is used.
type AuthMode string

const (
	// AuthAPISports talks to api-sports.io directly with x-apisports-key.
	AuthAPISports AuthMode = "APISPORTS"

	// AuthRapidAPI goes through RapidAPI with x-rapidapi-key and x-rapidapi-host.
	AuthRapidAPI AuthMode = "RAPIDAPI"
)

// Defaults for both auth modes.
const (
	DefaultAPISportsBaseURL = "https://v3.football.api-sports.io"
	DefaultRapidAPIBaseURL  = "https://api-football-v1.p.rapidapi.com/v3"
	DefaultRapidAPIHost     = "api-football-v1.p.rapidapi.com"
	DefaultTimeout          = 8 * time.Second
)

// Config holds the upstream client configuration.
type Config struct {
	AuthMode AuthMode

	// API-Sports. The base URL must not end in /v3; a trailing /v3 is stripped.
	APISportsKey     string
	APISportsBaseURL string

	// RapidAPI. The base URL normally includes /v3.
	RapidAPIKey     string
	RapidAPIHost    string
	RapidAPIBaseURL string

	// Timeout bounds a single upstream call.
	Timeout time.Duration

	// Pacing. RequestsPerSecond <= 0 disables it.
	RequestsPerSecond float64
	Burst             int

	// Circuit breaker. BreakerFailures consecutive transport failures open
	// the breaker for BreakerCooldown; 0 disables it.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// DefaultConfig returns the production defaults with no credentials.
func DefaultConfig() Config {
	return Config{
		AuthMode:          AuthAPISports,
		APISportsBaseURL:  DefaultAPISportsBaseURL,
		RapidAPIHost:      DefaultRapidAPIHost,
		RapidAPIBaseURL:   DefaultRapidAPIBaseURL,
		Timeout:           DefaultTimeout,
		RequestsPerSecond: 5,
		Burst:             2,
		BreakerFailures:   5,
		BreakerCooldown:   30 * time.Second,
	}
}

// ParseAuthMode accepts the mode case-insensitively; empty means APISPORTS.
func ParseAuthMode(s string) (AuthMode, error) {
	switch AuthMode(strings.ToUpper(strings.TrimSpace(s))) {
	case "", AuthAPISports:
		return AuthAPISports, nil
	case AuthRapidAPI:
		return AuthRapidAPI, nil
	default:
		return "", fmt.Errorf("unknown auth mode %q (want APISPORTS or RAPIDAPI)", s)
	}
}

// BaseURL returns the normalized base URL of the selected mode.
func (c Config) BaseURL() string {
	if c.AuthMode == AuthRapidAPI {
		base := c.RapidAPIBaseURL
		if base == "" {
			base = DefaultRapidAPIBaseURL
		}
		return strings.TrimRight(base, "/")
	}

	base := c.APISportsBaseURL
	if base == "" {
		base = DefaultAPISportsBaseURL
	}
	base = strings.TrimRight(base, "/")
	return strings.TrimSuffix(base, "/v3")
}

// HasCredentials reports whether the selected mode has its key.
func (c Config) HasCredentials() bool {
	_, ok := c.authHeaders()
	return ok
}

func (c Config) authHeaders() (map[string]string, bool) {
	if c.AuthMode == AuthRapidAPI {
		if c.RapidAPIKey == "" {
			return nil, false
		}
		host := c.RapidAPIHost
		if host == "" {
			host = DefaultRapidAPIHost
		}
		return map[string]string{
			"x-rapidapi-key":  c.RapidAPIKey,
			"x-rapidapi-host": host,
		}, true
	}

	if c.APISportsKey == "" {
		return nil, false
	}
	return map[string]string{"x-apisports-key": c.APISportsKey}, true
}
