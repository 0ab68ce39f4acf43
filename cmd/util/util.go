package util

import (
	"fmt"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tenkdog/jarvis/lib/botstate"
	"github.com/tenkdog/jarvis/rpc/common"
	"strconv"
	"strings"
	"time"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// UserAgent is sent with every request to the remote store
	UserAgent = "10k-dog-jarvis"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupServerFlags adds the flags of the bot configuration to a command. Every flag can
// also be set as JARVIS_<FLAG> environment variable (e.g. JARVIS_CORE_TTL=90s).
func SetupServerFlags(cmd *cobra.Command) {
	// remote store
	key := "backend"
	cmd.PersistentFlags().String(key, "", WrapString("Backend holding the datasets (gist, memory). Defaults to gist if a token is set and to memory otherwise"))

	key = "gist-token"
	cmd.PersistentFlags().String(key, "", WrapString("Token for the gist api (legacy env: GIST_TOKEN)"))

	key = "gist-api"
	cmd.PersistentFlags().String(key, "https://api.github.com", WrapString("Base url of the gist api"))

	key = "core-gist-id"
	cmd.PersistentFlags().String(key, "", WrapString("Id of the gist holding the core dataset (legacy env: GIST_ID_CORE)"))

	key = "core-file"
	cmd.PersistentFlags().String(key, "10k_dog_core.json", WrapString("File of the core dataset inside its gist"))

	key = "runtime-gist-id"
	cmd.PersistentFlags().String(key, "", WrapString("Id of the gist holding the runtime dataset (legacy env: GIST_ID_RT_JARVIS)"))

	key = "runtime-file"
	cmd.PersistentFlags().String(key, "10k_dog_runtime_jarvis.json", WrapString("File of the runtime dataset inside its gist"))

	key = "remote-timeout"
	cmd.PersistentFlags().Duration(key, 8*time.Second, WrapString("Upper bound of one call to the remote store, retries included"))

	key = "remote-retries"
	cmd.PersistentFlags().Int(key, 2, WrapString("How many times a request is attempted if the remote store cannot be reached"))

	key = "remote-rate"
	cmd.PersistentFlags().Float64(key, 1, WrapString("Requests per second sent to the remote store (0 disables the limit)"))

	key = "remote-burst"
	cmd.PersistentFlags().Int(key, 5, WrapString("Burst size of the remote rate limit"))

	// caching
	key = "core-ttl"
	cmd.PersistentFlags().Duration(key, 60*time.Second, WrapString("Freshness window of the core dataset. Bare numbers are seconds (legacy env: CORE_TTL_SEC)"))

	key = "runtime-ttl"
	cmd.PersistentFlags().Duration(key, 20*time.Second, WrapString("Freshness window of the runtime dataset (legacy env: RT_TTL_SEC)"))

	key = "core-debounce"
	cmd.PersistentFlags().Duration(key, 2500*time.Millisecond, WrapString("Debounce window of core write-backs (legacy env: CORE_SAVE_DEBOUNCE_SEC)"))

	key = "runtime-debounce"
	cmd.PersistentFlags().Duration(key, 2*time.Second, WrapString("Debounce window of runtime write-backs (legacy env: RT_SAVE_DEBOUNCE_SEC)"))

	key = "max-flush-delay"
	cmd.PersistentFlags().Duration(key, 30*time.Second, WrapString("Longest time a mutation may wait for its write-back while new mutations keep arriving (0 disables the cap)"))

	key = "breaker-threshold"
	cmd.PersistentFlags().Int(key, 3, WrapString("Consecutive remote failures that open the breaker (legacy env: CB_FAIL_THRESHOLD)"))

	key = "breaker-cooldown"
	cmd.PersistentFlags().Duration(key, 10*time.Second, WrapString("How long an open breaker rejects remote calls (legacy env: CB_OPEN_SEC)"))

	key = "lock-timeout"
	cmd.PersistentFlags().Duration(key, 150*time.Millisecond, WrapString("How long a request waits for a concurrent load or flush"))

	key = "bootstrap-missing"
	cmd.PersistentFlags().Bool(key, true, WrapString("Write the default document if a dataset does not exist at the remote store yet"))

	key = "init-timeout"
	cmd.PersistentFlags().Duration(key, 15*time.Second, WrapString("Upper bound for the initial load of all datasets"))

	key = "shutdown-timeout"
	cmd.PersistentFlags().Duration(key, 10*time.Second, WrapString("Upper bound for stopping the server and flushing pending mutations"))

	// bot state
	key = "bot-name"
	cmd.PersistentFlags().String(key, "10K DOG - Jarvis", WrapString("Name reported by the health endpoint"))

	key = "super-admin"
	cmd.PersistentFlags().Int64(key, botstate.DefaultSuperAdmin, WrapString("User id of the super admin, who can not be removed"))

	key = "timezone"
	cmd.PersistentFlags().String(key, botstate.DefaultTimezone, WrapString("Time zone of all timestamps written to the datasets"))

	// http
	key = "endpoint"
	cmd.PersistentFlags().String(key, "0.0.0.0:8080", WrapString("The address on which the webhook will listen. If unset, the legacy env PORT selects 0.0.0.0:PORT"))

	key = "webhook-path"
	cmd.PersistentFlags().String(key, "/tg-webhook", WrapString("Path receiving the updates of the chat platform"))

	key = "webhook-secret"
	cmd.PersistentFlags().String(key, "", WrapString("Secret expected in the X-Telegram-Bot-Api-Secret-Token header, empty disables the check"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// legacyEnv maps config keys to the variable names of older deployments. Variables with
// the JARVIS_ prefix take precedence.
var legacyEnv = map[string]string{
	"gist-token":        "GIST_TOKEN",
	"core-gist-id":      "GIST_ID_CORE",
	"runtime-gist-id":   "GIST_ID_RT_JARVIS",
	"core-ttl":          "CORE_TTL_SEC",
	"runtime-ttl":       "RT_TTL_SEC",
	"core-debounce":     "CORE_SAVE_DEBOUNCE_SEC",
	"runtime-debounce":  "RT_SAVE_DEBOUNCE_SEC",
	"breaker-threshold": "CB_FAIL_THRESHOLD",
	"breaker-cooldown":  "CB_OPEN_SEC",
	"port":              "PORT",
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("jarvis")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	for key, env := range legacyEnv {
		_ = viper.BindEnv(key, env)
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetServerConfig reads the bot configuration from viper and validates it
func GetServerConfig() (*common.ServerConfig, error) {
	conf := &common.ServerConfig{
		BotName: viper.GetString("bot-name"),
		Backend: common.Backend(strings.ToLower(viper.GetString("backend"))),
		Remote: common.ClientConfig{
			BaseURL:    viper.GetString("gist-api"),
			Token:      viper.GetString("gist-token"),
			RetryCount: viper.GetInt("remote-retries"),
			RateLimit:  viper.GetFloat64("remote-rate"),
			RateBurst:  viper.GetInt("remote-burst"),
			UserAgent:  UserAgent,
		},
		Core: common.DatasetConfig{
			GistID: viper.GetString("core-gist-id"),
			File:   viper.GetString("core-file"),
		},
		Runtime: common.DatasetConfig{
			GistID: viper.GetString("runtime-gist-id"),
			File:   viper.GetString("runtime-file"),
		},
		BreakerThreshold: viper.GetInt("breaker-threshold"),
		BootstrapMissing: viper.GetBool("bootstrap-missing"),
		SuperAdmin:       viper.GetInt64("super-admin"),
		Timezone:         viper.GetString("timezone"),
		Endpoint:         viper.GetString("endpoint"),
		WebhookPath:      viper.GetString("webhook-path"),
		WebhookSecret:    viper.GetString("webhook-secret"),
		LogLevel:         viper.GetString("log-level"),
	}

	// parse durations
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"remote-timeout", &conf.Remote.Timeout},
		{"core-ttl", &conf.Core.TTL},
		{"runtime-ttl", &conf.Runtime.TTL},
		{"core-debounce", &conf.Core.Debounce},
		{"runtime-debounce", &conf.Runtime.Debounce},
		{"max-flush-delay", &conf.MaxFlushDelay},
		{"breaker-cooldown", &conf.BreakerCooldown},
		{"lock-timeout", &conf.LockTimeout},
		{"init-timeout", &conf.InitTimeout},
		{"shutdown-timeout", &conf.ShutdownTimeout},
	}
	for _, d := range durations {
		v, err := GetDuration(d.key)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	// the backend follows the token unless it is set explicitly
	if conf.Backend == "" {
		conf.Backend = common.BackendMemory
		if conf.Remote.Token != "" {
			conf.Backend = common.BackendGist
		}
	}

	// legacy PORT only applies if no endpoint was configured
	if port := viper.GetString("port"); port != "" && !viper.IsSet("endpoint") {
		conf.Endpoint = "0.0.0.0:" + port
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// GetDuration reads a duration from viper. Bare numbers are seconds (e.g. "2.5"), anything
// else is parsed by time.ParseDuration (e.g. "2500ms").
func GetDuration(key string) (time.Duration, error) {
	raw := strings.TrimSpace(viper.GetString(key))
	if raw == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		if secs < 0 {
			return 0, fmt.Errorf("invalid %s %q: must not be negative", key, raw)
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, raw)
	}
	return d, nil
}
