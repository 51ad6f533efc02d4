package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EDITORMCP_"

// Load builds a configuration from defaults, the YAML file at path (skipped
// when path is empty) and EDITORMCP_* environment variables, in that order.
// The result is not validated; call Validate before use.
func Load(path string) (ServerConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg ServerConfig) ([]byte, error) {
	return yaml.Marshal(cfg)
}

type lookupFunc func(key string) (string, bool)

func applyEnvOverrides(cfg *ServerConfig, lookup lookupFunc) error {
	var errs []error

	intVar := func(name string, dst *int) {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = n
		}
	}
	durationVar := func(name string, dst *time.Duration) {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = d
		}
	}
	boolVar := func(name string, dst *bool) {
		if v, ok := lookup(EnvPrefix + name); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
				return
			}
			*dst = b
		}
	}
	stringVar := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	intVar("PORT", &cfg.Port)
	durationVar("CLIENT_TIMEOUT", &cfg.ClientTimeout)
	intVar("RECEIVE_BUFFER_SIZE", &cfg.ReceiveBufferSize)
	intVar("SEND_BUFFER_SIZE", &cfg.SendBufferSize)
	durationVar("TICK_INTERVAL", &cfg.TickInterval)
	intVar("MAX_CONCURRENT_CLIENTS", &cfg.MaxConcurrentClients)
	boolVar("VERBOSE_LOGGING", &cfg.VerboseLogging)
	boolVar("LOG_FULL_JSON_MESSAGES", &cfg.LogFullJSONMessages)
	boolVar("LOCALHOST_ONLY", &cfg.LocalhostOnly)
	durationVar("COMMAND_EXECUTION_TIMEOUT", &cfg.CommandExecutionTimeout)
	intVar("MAX_ACTORS_IN_SCENE_INFO", &cfg.MaxActorsInSceneInfo)
	stringVar("EVENTS_BROKER_URL", &cfg.EventsBrokerURL)
	stringVar("EVENTS_TOPIC_PREFIX", &cfg.EventsTopicPrefix)

	return errors.Join(errs...)
}
