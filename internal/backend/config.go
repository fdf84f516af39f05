package backend

import (
	"errors"
	"fmt"

	"rwa/internal/config"
)

// Config selects and locates a ledger store.
type Config struct {
	Type BackendType

	SQLiteDBPath  string
	PostgresURL   string
	DataDirectory string // memory seed files

	Events EventsConfig
}

// EventsConfig locates the AMQP exchange ledger changes are published to.
type EventsConfig struct {
	URL      string
	Exchange string
	Queue    string
}

// Enabled reports whether change events should be published.
func (e EventsConfig) Enabled() bool {
	return e.URL != ""
}

// FromAppConfig picks the backend settings out of the process config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	bt, err := ParseBackendType(appConfig.DataBackend)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Type:          bt,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		PostgresURL:   appConfig.PostgresURL,
		DataDirectory: appConfig.DataDirectory,
		Events: EventsConfig{
			URL:      appConfig.AMQPURL,
			Exchange: appConfig.AMQPExchange,
			Queue:    appConfig.AMQPQueue,
		},
	}
	if cfg.DataDirectory == "" {
		cfg.DataDirectory = "data"
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return errors.New("sqlite backend needs a database path")
		}
	case PostgresBackend:
		if c.PostgresURL == "" {
			return errors.New("postgres backend needs a connection URL")
		}
	case MemoryBackend:
	default:
		return fmt.Errorf("unknown backend %q", c.Type)
	}

	if c.Events.Enabled() && (c.Events.Exchange == "" || c.Events.Queue == "") {
		return errors.New("change events need an exchange and a queue")
	}
	return nil
}
