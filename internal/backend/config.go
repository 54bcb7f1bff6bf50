package backend

import (
	"errors"
	"fmt"

	"wealthwatch/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	t := Type(appConfig.DataBackend)
	if !t.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:           t,
		SQLiteDBPath:   appConfig.SQLiteDBPath,
		BusyTimeout:    appConfig.SQLiteBusyTimeout,
		MemorySeedFile: appConfig.MemorySeedFile,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == SQLite && c.SQLiteDBPath == "" {
		return errors.New("SQLite database path is required for sqlite backend")
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("invalid busy timeout: %v", c.BusyTimeout)
	}
	return nil
}

// Types returns all valid backend types
func Types() []Type {
	return []Type{SQLite, Memory}
}
