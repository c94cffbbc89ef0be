// Package params defines important configuration options for the relayer
// runtime such as cleanup retention windows and VAA fetch retry policy.
package params

import (
	"os"
	"strconv"
	"time"
)

// RelayerConfig contains the operational knobs recognized by the relayer.
// Retention windows are expressed in hours, matching the environment
// variables they are loaded from.
type RelayerConfig struct {
	// Cleanup retention windows.
	CleanQueuedTime    time.Duration // age limit for QUEUED deposits.
	CleanFinalizedTime time.Duration // age limit for FINALIZED deposits.
	CleanBridgedTime   time.Duration // age limit for BRIDGED deposits.

	// VAA fetch retry policy.
	VAAFetchMaxRetries   int
	VAAFetchRetryDelay   time.Duration
	VAAMaxAttemptsBeforeFailed int // 0 keeps retrying indefinitely.

	// Wormhole consistency level floor. Messages below it log a warning.
	VAAConsistencyLevelFloor uint8

	// Scheduler cadences.
	ProcessInterval      time.Duration
	PastDepositsInterval time.Duration
	CleanupInterval      time.Duration

	// Back-scan window handed to handlers supporting past-deposit checks.
	PastDepositsLookback time.Duration
}

var relayerConfig = DefaultRelayerConfig()

// DefaultRelayerConfig returns the config populated with default values and
// environment overrides applied.
func DefaultRelayerConfig() *RelayerConfig {
	c := &RelayerConfig{
		CleanQueuedTime:            48 * time.Hour,
		CleanFinalizedTime:         12 * time.Hour,
		CleanBridgedTime:           12 * time.Hour,
		VAAFetchMaxRetries:         5,
		VAAFetchRetryDelay:         60 * time.Second,
		VAAMaxAttemptsBeforeFailed: 0,
		VAAConsistencyLevelFloor:   1,
		ProcessInterval:            1 * time.Minute,
		PastDepositsInterval:       60 * time.Minute,
		CleanupInterval:            10 * time.Minute,
		PastDepositsLookback:       60 * time.Minute,
	}
	if v, ok := envHours("CLEAN_QUEUED_TIME"); ok {
		c.CleanQueuedTime = v
	}
	if v, ok := envHours("CLEAN_FINALIZED_TIME"); ok {
		c.CleanFinalizedTime = v
	}
	if v, ok := envHours("CLEAN_BRIDGED_TIME"); ok {
		c.CleanBridgedTime = v
	}
	if v, ok := envInt("VAA_FETCH_MAX_RETRIES"); ok {
		c.VAAFetchMaxRetries = v
	}
	if v, ok := envInt("VAA_FETCH_RETRY_DELAY_MS"); ok {
		c.VAAFetchRetryDelay = time.Duration(v) * time.Millisecond
	}
	if v, ok := envInt("VAA_MAX_ATTEMPTS_BEFORE_FAILED"); ok {
		c.VAAMaxAttemptsBeforeFailed = v
	}
	return c
}

// Relayer returns the active relayer configuration.
func Relayer() *RelayerConfig {
	return relayerConfig
}

// OverrideRelayerConfig replaces the active configuration. Tests use this to
// substitute tightened retention windows and retry budgets.
func OverrideRelayerConfig(c *RelayerConfig) {
	relayerConfig = c
}

func envHours(name string) (time.Duration, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	hours, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.WithField("variable", name).WithError(err).Warn("Ignoring malformed duration override")
		return 0, false
	}
	return time.Duration(hours * float64(time.Hour)), true
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.WithField("variable", name).WithError(err).Warn("Ignoring malformed integer override")
		return 0, false
	}
	return n, true
}
