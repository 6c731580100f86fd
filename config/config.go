package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lmstaker/crypto"
	"lmstaker/native/staker"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ListenAddress        string    `toml:"ListenAddress"`
	DataDir              string    `toml:"DataDir"`
	Environment          string    `toml:"Environment"`
	OperatorKeystorePath string    `toml:"OperatorKeystorePath"`
	Staker               Staker    `toml:"Staker"`
	Auth                 Auth      `toml:"Auth"`
	RateLimit            RateLimit `toml:"RateLimit"`
	Log                  Log       `toml:"Log"`
	Telemetry            Telemetry `toml:"Telemetry"`
	Indexer              Indexer   `toml:"Indexer"`
}

// Load loads the configuration from the given path. A missing file is created
// with defaults and a freshly generated operator key whose address becomes the
// custody vault.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if strings.TrimSpace(cfg.Staker.Vault) == "" {
		if err := ensureOperatorKey(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8090"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./staker-data"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "dev"
	}
	if cfg.Staker.MaxIncentiveStartLeadTime == 0 {
		cfg.Staker.MaxIncentiveStartLeadTime = staker.DefaultMaxIncentiveStartLeadTime
	}
	if cfg.Staker.MaxIncentiveDuration == 0 {
		cfg.Staker.MaxIncentiveDuration = staker.DefaultMaxIncentiveDuration
	}
	if cfg.RateLimit.RequestsPerMinute == 0 {
		cfg.RateLimit.RequestsPerMinute = 600
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 60
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 100
	}
}

// ensureOperatorKey derives the vault from the operator keystore, generating
// the key when it does not exist yet.
func ensureOperatorKey(configPath string, cfg *Config) error {
	keystorePath := cfg.OperatorKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	var key *crypto.PrivateKey
	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		generated, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, generated, ""); err != nil {
			return err
		}
		key = generated
	} else if err != nil {
		return err
	} else {
		loaded, loadErr := crypto.LoadFromKeystore(keystorePath, "")
		if loadErr != nil {
			return fmt.Errorf("load operator keystore: %w", loadErr)
		}
		key = loaded
	}

	cfg.OperatorKeystorePath = keystorePath
	cfg.Staker.Vault = key.PubKey().Address().String()
	return persist(configPath, cfg)
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Auth.Issuer = "lmstaker"
	cfg.Auth.AllowAnonymousReads = true
	if err := ensureOperatorKey(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "operator.keystore")
}

// StakerParams converts the [Staker] section into engine parameters.
func (cfg *Config) StakerParams() staker.Params {
	return staker.Params{
		MaxIncentiveStartLeadTime: cfg.Staker.MaxIncentiveStartLeadTime,
		MaxIncentiveDuration:      cfg.Staker.MaxIncentiveDuration,
		MaxObservationAge:         cfg.Staker.MaxObservationAge,
	}
}

// VaultAddress parses the configured custody vault.
func (cfg *Config) VaultAddress() ([20]byte, error) {
	return crypto.ParseAddress(cfg.Staker.Vault)
}
