package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB attempts to connect to a PostgreSQL database for testing.
// It skips the test if the connection cannot be established.
func setupTestDB(t testing.TB) *sql.DB {
	t.Helper()

	pgUser := os.Getenv("PGUSER")
	pgPassword := os.Getenv("PGPASSWORD")
	pgHost := os.Getenv("PGHOST")
	pgPort := os.Getenv("PGPORT")
	pgDB := os.Getenv("PGDATABASE")

	if pgUser == "" {
		pgUser = "user"
	}
	if pgPassword == "" {
		pgPassword = "password"
	}
	if pgHost == "" {
		pgHost = "localhost"
	}
	if pgPort == "" {
		pgPort = "5432"
	}
	if pgDB == "" {
		pgDB = "testdb"
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		pgHost, pgPort, pgUser, pgPassword, pgDB)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("failed to open database connection: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Skipf("skipping: could not connect to postgres: %v", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS events (
			id BIGSERIAL PRIMARY KEY,
			event_id UUID NOT NULL,
			stream_type TEXT NOT NULL,
			stream_id BIGINT NOT NULL,
			event_type TEXT NOT NULL,
			event_data JSONB NOT NULL,
			metadata JSONB,
			version INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (stream_type, stream_id, version)
		);
	`)
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return db
}

type testEvent struct {
	Message string `json:"message"`
}

func marshalTestEvent(t testing.TB, msg string) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(testEvent{Message: msg})
	require.NoError(t, err)
	return data
}

func TestAppendAndLoadRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	store := New(db)
	ctx := context.Background()

	// Fresh stream id to isolate from prior runs.
	streamID := int64(os.Getpid())<<16 | int64(t.Name()[0])

	for i := 0; i < 3; i++ {
		err := store.Append(ctx, "member", streamID, i, []Event{
			{EventType: "TestEvent", EventData: marshalTestEvent(t, fmt.Sprintf("event %d", i))},
		})
		require.NoError(t, err)
	}

	events, err := store.Load(ctx, "member", streamID, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, i+1, ev.Version)
		assert.Equal(t, "member", ev.StreamType)
		assert.Equal(t, streamID, ev.StreamID)
	}

	version, err := store.CurrentVersion(ctx, "member", streamID)
	require.NoError(t, err)
	assert.Equal(t, 3, version)
}

func TestAppendStaleVersionConflicts(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	store := New(db)
	ctx := context.Background()

	streamID := int64(os.Getpid())<<16 | 0x7f

	err := store.Append(ctx, "borrow", streamID, 0, []Event{
		{EventType: "TestEvent", EventData: marshalTestEvent(t, "first")},
	})
	require.NoError(t, err)

	// Re-appending with the already-consumed version must be rejected.
	err = store.Append(ctx, "borrow", streamID, 0, []Event{
		{EventType: "TestEvent", EventData: marshalTestEvent(t, "stale")},
	})
	assert.ErrorIs(t, err, ErrConcurrencyConflict)
}

func BenchmarkAppend(b *testing.B) {
	db := setupTestDB(b)
	defer db.Close()
	store := New(db)

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		b.StopTimer()
		streamID := int64(1_000_000 + i)
		data := marshalTestEvent(b, fmt.Sprintf("event %d", i))
		b.StartTimer()

		err := store.Append(context.Background(), "bench", streamID, 0, []Event{
			{EventType: "TestEvent", EventData: data},
		})
		if err != nil {
			b.Fatalf("Append failed: %v", err)
		}
	}
}
