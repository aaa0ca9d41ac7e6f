package backend

import (
	"fmt"
	"time"

	"spendtrack/internal/config"
)

// Config holds what the factory needs to build a backend.
type Config struct {
	Ledger        LedgerType
	LedgerBaseURL string
	LedgerTimeout time.Duration

	Identity       IdentityType
	IdentityDBPath string

	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string
}

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}
	cfg := Config{
		Ledger:         LedgerType(appConfig.LedgerBackend),
		LedgerBaseURL:  appConfig.LedgerBaseURL,
		LedgerTimeout:  appConfig.LedgerTimeout,
		Identity:       IdentityType(appConfig.IdentityBackend),
		IdentityDBPath: appConfig.IdentityDBPath,
		AMQPURL:        appConfig.AMQPURL,
		AMQPExchange:   appConfig.AMQPExchange,
		AMQPRoutingKey: appConfig.AMQPRoutingKey,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if !c.Ledger.IsValid() {
		return fmt.Errorf("invalid ledger backend: %s", c.Ledger)
	}
	if !c.Identity.IsValid() {
		return fmt.Errorf("invalid identity backend: %s", c.Identity)
	}
	if c.Ledger == HTTPLedger && c.LedgerBaseURL == "" {
		return fmt.Errorf("ledger base URL is required for the http ledger")
	}
	if c.Identity == SQLiteIdentity && c.IdentityDBPath == "" {
		return fmt.Errorf("identity database path is required for the sqlite identity store")
	}
	return nil
}
