package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/meridianfi/fvm/internal/farming"
)

// Application configuration loaded from environment variables at startup by
// LoadConfig. Engine packages never read these directly; the values are
// passed in explicitly so the engine stays a pure function of its inputs.
var (
	// Dev lowers the minimum reward duration to 1 second and removes the
	// release-date window bounds. Tests and devnets only.
	Dev bool
	// Verbose switches record String() renderings to their full form.
	Verbose bool

	// ReleaseWindowLowerMonths and ReleaseWindowUpperMonths bound a lock
	// vault's release date relative to now. Months are 30-day months.
	ReleaseWindowLowerMonths uint64
	ReleaseWindowUpperMonths uint64

	// WebPort is the port for the observability API.
	WebPort string
)

const (
	defaultReleaseLowerMonths = 11
	defaultReleaseUpperMonths = 13
	secondsPerMonth           = 30 * 86400
)

// LoadConfig populates the globals from environment variables. Unset
// optional variables fall back to production defaults.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	Dev = getEnvAsBool("FVM_DEV")
	Verbose = getEnvAsBool("FVM_VERBOSE")

	var err error
	ReleaseWindowLowerMonths, err = getEnvAsUint64Default("FVM_RELEASE_WINDOW_LOWER_MONTHS", defaultReleaseLowerMonths)
	if err != nil {
		return err
	}
	ReleaseWindowUpperMonths, err = getEnvAsUint64Default("FVM_RELEASE_WINDOW_UPPER_MONTHS", defaultReleaseUpperMonths)
	if err != nil {
		return err
	}
	if ReleaseWindowLowerMonths >= ReleaseWindowUpperMonths {
		return errors.New("FVM_RELEASE_WINDOW_LOWER_MONTHS must be below FVM_RELEASE_WINDOW_UPPER_MONTHS")
	}

	WebPort = os.Getenv("WEB_PORT")
	if WebPort == "" {
		WebPort = "8080"
	}

	log.Debug().
		Bool("Dev", Dev).
		Bool("Verbose", Verbose).
		Uint64("ReleaseWindowLowerMonths", ReleaseWindowLowerMonths).
		Uint64("ReleaseWindowUpperMonths", ReleaseWindowUpperMonths).
		Msg("Configuration loaded successfully.")

	return nil
}

// MinRewardDuration returns the shortest accepted farming reward window:
// one day in production, one second in dev mode.
func MinRewardDuration() uint64 {
	if Dev {
		return 1
	}
	return farming.DefaultMinDuration
}

// ReleaseWindow returns the lock-vault release-date bounds in seconds
// relative to now. In dev mode the window is unbounded.
func ReleaseWindow() (lower, upper uint64) {
	if Dev {
		return 0, 0
	}
	return ReleaseWindowLowerMonths * secondsPerMonth, ReleaseWindowUpperMonths * secondsPerMonth
}

// getEnvAsBool treats "1" and "true" as true; anything else, including an
// unset variable, is false.
func getEnvAsBool(key string) bool {
	value := os.Getenv(key)
	return value == "1" || value == "true"
}

// getEnvAsUint64Default retrieves an environment variable as a uint64,
// falling back to defaultValue when unset.
func getEnvAsUint64Default(key string, defaultValue uint64) (uint64, error) {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}
