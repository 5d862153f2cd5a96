package config

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"os"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// Mode selects the execution backend: "paper" simulates the lending
	// market, oracle and exchanges in process, "live" requires real adapters.
	Mode string

	// Operator is the principal allowed to call engage, disengage and all
	// settings mutators.
	Operator string
	// Methodologist is the second principal of the mutual-upgrade party.
	Methodologist string

	// AllowedTraders are the identities permitted to call rebalance and
	// iterateRebalance. Ignored when AnyoneTrade is true.
	AllowedTraders []string
	// AnyoneTrade opens rebalance and iterateRebalance to any caller.
	AnyoneTrade bool

	// KeeperCaller is the identity the keeper loop uses on trader-gated
	// operations. It must be in AllowedTraders unless AnyoneTrade is set.
	KeeperCaller string
	// KeeperInterval is how often the keeper polls shouldRebalance.
	KeeperInterval time.Duration
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	Mode, err = getEnv("FLM_MODE")
	if err != nil {
		return err
	}
	if Mode != "paper" && Mode != "live" {
		return errors.New("FLM_MODE must be either 'paper' or 'live', got: " + Mode)
	}

	Operator, err = getEnv("FLM_OPERATOR")
	if err != nil {
		return err
	}

	Methodologist, err = getEnv("FLM_METHODOLOGIST")
	if err != nil {
		return err
	}

	KeeperCaller, err = getEnv("FLM_KEEPER_CALLER")
	if err != nil {
		return err
	}

	AnyoneTrade = getEnvAsBool("FLM_ANYONE_TRADE", false)

	if traders := os.Getenv("FLM_ALLOWED_TRADERS"); traders != "" {
		for _, t := range strings.Split(traders, ",") {
			if trimmed := strings.TrimSpace(t); trimmed != "" {
				AllowedTraders = append(AllowedTraders, trimmed)
			}
		}
	}
	if !AnyoneTrade && len(AllowedTraders) == 0 {
		AllowedTraders = []string{KeeperCaller}
	}

	KeeperInterval, err = getEnvAsDuration("FLM_KEEPER_INTERVAL", 30*time.Second)
	if err != nil {
		return err
	}

	// Load paper-mode bootstrap configuration
	if err := loadPaperConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("Mode", Mode).
		Str("Operator", Operator).
		Str("KeeperCaller", KeeperCaller).
		Dur("KeeperInterval", KeeperInterval).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvWithDefault retrieves a string environment variable, falling back to
// the given default when unset.
func getEnvWithDefault(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvAsBool retrieves an environment variable as a bool, falling back to
// the given default when unset or unparseable.
func getEnvAsBool(key string, fallback bool) bool {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return fallback
	}
	return value
}

// getEnvAsDuration retrieves an environment variable as a time.Duration.
// Returns the fallback when unset and an error when set but invalid.
func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return fallback, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid duration, got: " + valueStr)
	}
	return value, nil
}
