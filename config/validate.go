package config

import (
	"fmt"
	"strings"

	"lmstaker/observability/logging"
)

func (cfg *Config) validate() error {
	if err := cfg.StakerParams().Validate(); err != nil {
		return err
	}
	vault, err := cfg.VaultAddress()
	if err != nil {
		return fmt.Errorf("staker: invalid Vault: %w", err)
	}
	if vault == ([20]byte{}) {
		return fmt.Errorf("staker: Vault must not be the zero address")
	}
	if cfg.Auth.Enabled && strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		return fmt.Errorf("auth: HMACSecret required when auth is enabled")
	}
	if cfg.RateLimit.RequestsPerMinute < 0 || cfg.RateLimit.Burst < 0 {
		return fmt.Errorf("ratelimit: limits must not be negative")
	}
	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 || cfg.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log: rotation limits must not be negative")
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry: SampleRatio must be within [0, 1]")
	}
	return nil
}
