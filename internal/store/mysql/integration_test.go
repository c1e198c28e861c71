//go:build integration

package mysql

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"supportconsole/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
)

// Runs the audit migration and the audit repository against a real MySQL 8.
// go test -tags integration ./internal/store/mysql/...
func TestIntegration_AuditLogRoundTrip(t *testing.T) {
	ctx := context.Background()

	container, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("wgf"),
		tcmysql.WithUsername("support"),
		tcmysql.WithPassword("secret"),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	dsn, err := container.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err)

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	defer db.Close()
	// Same pool shape as Open: the migrator must hand its connection back.
	db.SetMaxOpenConns(1)

	require.NoError(t, Migrate(db))
	// A second run must be a no-op
	require.NoError(t, Migrate(db))

	s := New(db)
	target := uuid.New()

	rec := &store.AuditRecord{
		ActionType:  "DEACTIVATE_ACCOUNT",
		TargetTable: "trading_account",
		TargetID:    uuid.NullUUID{UUID: target, Valid: true},
		Details:     map[string]any{"reason": "NEWS_VIOLATION"},
		Operator:    "integration",
		Environment: "staging",
	}
	require.NoError(t, s.InsertAuditRecord(ctx, nil, rec))
	assert.NotZero(t, rec.ID)

	records, err := s.GetAuditRecordsForTarget(ctx, target, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, "DEACTIVATE_ACCOUNT", got.ActionType)
	assert.Equal(t, target, got.TargetID.UUID)
	assert.Equal(t, "NEWS_VIOLATION", got.Details["reason"])
	assert.WithinDuration(t, time.Now(), got.ExecutedAt, 5*time.Minute)
}
