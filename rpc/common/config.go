package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Remote client configuration struct
// --------------------------------------------------------------------------

// ClientConfig configures the REST client that talks to the remote document store
type ClientConfig struct {
	// BaseURL of the remote api, e.g. https://api.github.com
	BaseURL string
	// Token used for the Authorization header, empty disables authentication
	Token string
	// Timeout bounds one call to the remote including retries and reading the body
	Timeout time.Duration
	// RetryCount is the number of attempts for requests that could not reach the remote
	RetryCount int
	// RateLimit in requests per second (0 disables limiting), RateBurst the bucket size
	RateLimit float64
	RateBurst int
	// UserAgent sent with every request
	UserAgent string
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder
	addSection, addField := formatHelpers(&sb)

	addSection("Remote Store Client")
	addField("Base URL", c.BaseURL)
	addField("Token", redact(c.Token))
	addField("Timeout", c.Timeout.String())
	addField("Retry Count", strconv.Itoa(c.RetryCount))
	addField("Rate Limit", fmt.Sprintf("%.2f req/s (burst %d)", c.RateLimit, c.RateBurst))

	return sb.String()
}

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

type Backend string

const (
	BackendGist   Backend = "gist"
	BackendMemory Backend = "memory"
)

// DatasetConfig describes where one dataset lives and how it is cached
type DatasetConfig struct {
	// GistID is the id of the container at the remote store
	GistID string
	// File is the name of the sub-resource inside the container
	File string
	// TTL is the freshness window of the cached copy
	TTL time.Duration
	// Debounce is the minimum time between the first mutation and the write-back
	Debounce time.Duration
}

// ServerConfig holds all configuration parameters of the bot server
type ServerConfig struct {
	// BotName is reported by the health endpoint
	BotName string

	// remote store
	Backend Backend
	Remote  ClientConfig
	Core    DatasetConfig
	Runtime DatasetConfig

	// sync layer parameters
	BreakerThreshold int
	BreakerCooldown  time.Duration
	LockTimeout      time.Duration
	MaxFlushDelay    time.Duration // upper bound for deferring a write-back, 0 disables it
	BootstrapMissing bool
	InitTimeout      time.Duration
	ShutdownTimeout  time.Duration

	// bot state
	SuperAdmin int64
	Timezone   string

	// HTTP api settings
	Endpoint      string
	WebhookPath   string
	WebhookSecret string

	// Logging configuration
	LogLevel string
}

// Validate checks the configuration for values the server cannot run with
func (c *ServerConfig) Validate() error {
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.Backend {
	case BackendMemory:
	case BackendGist:
		if c.Remote.Token == "" {
			return fmt.Errorf("backend %s requires a token", c.Backend)
		}
		if c.Core.GistID == "" || c.Runtime.GistID == "" {
			return fmt.Errorf("backend %s requires the gist ids of both datasets", c.Backend)
		}
	default:
		return fmt.Errorf("invalid backend %q. must be one of %s, %s", c.Backend, BackendGist, BackendMemory)
	}
	if c.Core.File == "" || c.Runtime.File == "" {
		return fmt.Errorf("dataset file names must not be empty")
	}
	if c.BreakerThreshold < 1 {
		return fmt.Errorf("breaker threshold must be at least 1, got %d", c.BreakerThreshold)
	}
	if !strings.HasPrefix(c.WebhookPath, "/") {
		return fmt.Errorf("webhook path must start with /, got %q", c.WebhookPath)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder
	addSection, addField := formatHelpers(&sb)

	// HTTP settings
	addSection("HTTP Server")
	addField("Bot", c.BotName)
	addField("Endpoint", c.Endpoint)
	addField("Webhook Path", c.WebhookPath)
	addField("Webhook Secret", redact(c.WebhookSecret))

	// Datasets
	addSection("Datasets")
	addField("Backend", string(c.Backend))
	addField("Core", fmt.Sprintf("%s/%s (ttl %s, debounce %s)", c.Core.GistID, c.Core.File, c.Core.TTL, c.Core.Debounce))
	addField("Runtime", fmt.Sprintf("%s/%s (ttl %s, debounce %s)", c.Runtime.GistID, c.Runtime.File, c.Runtime.TTL, c.Runtime.Debounce))
	addField("Bootstrap Missing", strconv.FormatBool(c.BootstrapMissing))

	// Resilience
	addSection("Resilience")
	addField("Breaker Threshold", strconv.Itoa(c.BreakerThreshold))
	addField("Breaker Cool-down", c.BreakerCooldown.String())
	addField("Lock Timeout", c.LockTimeout.String())
	addField("Max Flush Delay", c.MaxFlushDelay.String())
	addField("Init Timeout", c.InitTimeout.String())
	addField("Shutdown Timeout", c.ShutdownTimeout.String())

	// Bot state
	addSection("Bot State")
	addField("Super Admin", strconv.FormatInt(c.SuperAdmin, 10))
	addField("Timezone", c.Timezone)

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	if c.Backend == BackendGist {
		sb.WriteString(c.Remote.String())
	}
	return sb.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// formatHelpers returns helper functions for consistent formatting
func formatHelpers(sb *strings.Builder) (addSection func(string), addField func(string, string)) {
	addSection = func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField = func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}
	return addSection, addField
}

// redact hides secrets, only whether they are set is shown
func redact(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	return "(set)"
}
