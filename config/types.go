package config

// Staker bounds incentive schedules and names the custody vault.
type Staker struct {
	MaxIncentiveStartLeadTime int64  `toml:"MaxIncentiveStartLeadTime"`
	MaxIncentiveDuration      int64  `toml:"MaxIncentiveDuration"`
	MaxObservationAge         int64  `toml:"MaxObservationAge"`
	Vault                     string `toml:"Vault"`
}

// Auth controls bearer token verification on the HTTP API.
type Auth struct {
	Enabled             bool   `toml:"Enabled"`
	HMACSecret          string `toml:"HMACSecret"`
	Issuer              string `toml:"Issuer"`
	Audience            string `toml:"Audience"`
	AllowAnonymousReads bool   `toml:"AllowAnonymousReads"`
}

// RateLimit defines the per-client request budget.
type RateLimit struct {
	RequestsPerMinute int `toml:"RequestsPerMinute"`
	Burst             int `toml:"Burst"`
}

// Log selects the log destination. An empty File logs to stdout.
type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint    string            `toml:"Endpoint"`
	Insecure    bool              `toml:"Insecure"`
	Traces      bool              `toml:"Traces"`
	Metrics     bool              `toml:"Metrics"`
	Headers     map[string]string `toml:"Headers"`
	SampleRatio float64           `toml:"SampleRatio"`
}

// Indexer configures the sqlite event log. An empty Path disables it.
type Indexer struct {
	Path string `toml:"Path"`
}
