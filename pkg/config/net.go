package config

// NetConfig tunes the agent's redial loop.
type NetConfig struct {
	// DialBackoffInitialMS is the delay before the first retry; it
	// doubles per failure up to DialBackoffMaxMS, plus up to
	// DialBackoffJitterMS of random extra.
	DialBackoffInitialMS int `mapstructure:"dial_backoff_initial_ms"`
	DialBackoffMaxMS     int `mapstructure:"dial_backoff_max_ms"`
	DialBackoffJitterMS  int `mapstructure:"dial_backoff_jitter_ms"`
}
