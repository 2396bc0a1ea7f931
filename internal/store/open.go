package store

import (
	"fmt"
	"io"
)

// Config selects and configures a driver.
type Config struct {
	Driver     string
	SQLitePath string
	Supabase   SupabaseConfig
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the store named by cfg.Driver. The returned closer releases
// driver resources and is never nil.
func Open(cfg Config) (ConversationStore, io.Closer, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemoryStore(), nopCloser{}, nil
	case DriverSQLite:
		s, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case DriverSupabase:
		s, err := NewSupabaseStore(cfg.Supabase)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
