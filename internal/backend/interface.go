// Package backend builds the storage.Store selected by configuration.
package backend

import (
	"context"
	"time"

	"fintrack/internal/storage"
)

// CleanupFunc releases whatever the backend holds open.
type CleanupFunc func(ctx context.Context) error

// Result is a ready store plus its cleanup.
type Result struct {
	Store   storage.Store
	Cleanup CleanupFunc
}

// Factory creates stores from a Config.
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

type Config struct {
	Type Type

	SQLiteDBPath string

	MongoURI            string
	MongoDatabase       string
	MongoConnectTimeout time.Duration
	// Timezone is the IANA zone used when a caller's location has no name.
	Timezone string
}

type Type string

const (
	MemoryBackend Type = "memory"
	SQLiteBackend Type = "sqlite"
	MongoBackend  Type = "mongo"
)

func (t Type) String() string {
	return string(t)
}

func (t Type) IsValid() bool {
	switch t {
	case MemoryBackend, SQLiteBackend, MongoBackend:
		return true
	default:
		return false
	}
}

func Types() []Type {
	return []Type{MemoryBackend, SQLiteBackend, MongoBackend}
}
