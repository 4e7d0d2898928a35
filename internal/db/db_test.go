package db

import (
	"context"
	"testing"
	"time"
)

func TestConnectRejectsBadDSN(t *testing.T) {
	tests := []struct {
		name    string
		dsn     string
		timeout time.Duration
	}{
		{"invalid DSN format", "invalid-dsn-format", 5 * time.Second},
		{"unreachable host", "postgres://u:p@nonexistent-host.invalid:5432/herald?sslmode=disable", 2 * time.Second},
		{"invalid port", "postgres://u:p@localhost:99999/herald?sslmode=disable", 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), tt.timeout)
			defer cancel()

			pool, err := Connect(ctx, tt.dsn, 0)
			if err == nil {
				pool.Close()
				t.Fatal("Connect() expected error but got none")
			}
		})
	}
}
