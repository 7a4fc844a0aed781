package sweep

import "time"

// Config controls the reconciliation windows and batch sizes.
type Config struct {
	// WarningWindow is how far ahead of expiry the warning email goes out.
	WarningWindow time.Duration
	// AbandonTimeout is how long a pending transaction may sit before the
	// sweep fails it. Deliberately longer than the gateway call timeout: it
	// catches the case where registration succeeded but no webhook followed.
	AbandonTimeout time.Duration
	BatchSize      int
	PublicURL      string
}

func DefaultConfig() Config {
	return Config{
		WarningWindow:  72 * time.Hour,
		AbandonTimeout: time.Hour,
		BatchSize:      100,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.WarningWindow <= 0 {
		c.WarningWindow = defaults.WarningWindow
	}
	if c.AbandonTimeout <= 0 {
		c.AbandonTimeout = defaults.AbandonTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	return c
}
