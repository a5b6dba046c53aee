package database

import (
	"context"
	"fmt"
)

var (
	postgresRunReader   func() RunReader
	postgresRunWriter   func() RunWriter
	postgresInitialized bool
)

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by the postgres package to avoid import cycles.
func RegisterPostgresBackend(
	runReader func() RunReader,
	runWriter func() RunWriter,
) {
	postgresRunReader = runReader
	postgresRunWriter = runWriter
	postgresInitialized = true
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	return postgresInitialized
}

// GetRunReader returns a RunReader from the PostgreSQL backend
func GetRunReader(ctx context.Context) (RunReader, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresRunReader == nil {
		return nil, fmt.Errorf("PostgreSQL run reader not registered")
	}
	return postgresRunReader(), nil
}

// GetRunWriter returns a RunWriter from the PostgreSQL backend
func GetRunWriter(ctx context.Context) (RunWriter, error) {
	if !postgresInitialized {
		return nil, fmt.Errorf("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresRunWriter == nil {
		return nil, fmt.Errorf("PostgreSQL run writer not registered")
	}
	return postgresRunWriter(), nil
}
