package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")

// Event is a single entry in a stream. Streams are keyed by (stream type,
// numeric id) because the platform's entities use serial integer keys.
type Event struct {
	ID         int64                  `json:"id" db:"id"`
	EventID    uuid.UUID              `json:"event_id" db:"event_id"`
	StreamType string                 `json:"stream_type" db:"stream_type"`
	StreamID   int64                  `json:"stream_id" db:"stream_id"`
	EventType  string                 `json:"event_type" db:"event_type"`
	EventData  json.RawMessage        `json:"event_data" db:"event_data"`
	Metadata   map[string]interface{} `json:"metadata,omitempty" db:"metadata"`
	Version    int                    `json:"version" db:"version"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
}

// Store is an append-only event journal with optimistic concurrency control.
type Store struct {
	db     *sql.DB
	tracer trace.Tracer
}

func New(db *sql.DB) *Store {
	return &Store{
		db:     db,
		tracer: otel.Tracer("library/eventstore"),
	}
}

// Append atomically appends events to a stream. expectedVersion is the version
// the caller last observed; a mismatch means a concurrent writer won.
func (s *Store) Append(ctx context.Context, streamType string, streamID int64, expectedVersion int, events []Event) error {
	ctx, span := s.tracer.Start(ctx, "eventstore.append",
		trace.WithAttributes(
			attribute.String("stream.type", streamType),
			attribute.Int64("stream.id", streamID),
			attribute.Int("expected.version", expectedVersion),
			attribute.Int("event.count", len(events)),
		),
	)
	defer span.End()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var currentVersion int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM events
		WHERE stream_type = $1 AND stream_id = $2
	`, streamType, streamID).Scan(&currentVersion)

	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("query current version: %w", err)
	}

	if currentVersion != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", currentVersion),
			attribute.Bool("conflict.detected", true),
		)
		return ErrConcurrencyConflict
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (event_id, stream_type, stream_id, event_type, event_data, metadata, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, event := range events {
		version := expectedVersion + i + 1
		metadataJSON, _ := json.Marshal(event.Metadata)

		eventID := event.EventID
		if eventID == uuid.Nil {
			eventID = uuid.New()
		}

		var rowID int64
		err = stmt.QueryRowContext(
			ctx,
			eventID,
			streamType,
			streamID,
			event.EventType,
			event.EventData,
			metadataJSON,
			version,
			time.Now().UTC(),
		).Scan(&rowID)

		if err != nil {
			// Unique constraint on (stream_type, stream_id, version) catches
			// the race two appenders can still hit after the version read.
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
				return ErrConcurrencyConflict
			}
			return fmt.Errorf("insert event %d: %w", i, err)
		}

		span.AddEvent("event.appended", trace.WithAttributes(
			attribute.Int64("event.id", rowID),
			attribute.Int("event.version", version),
			attribute.String("event.type", event.EventType),
		))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	span.SetAttributes(attribute.Bool("append.success", true))
	return nil
}

// Load retrieves a stream's events in version order. toVersion <= 0 means
// "to the end".
func (s *Store) Load(ctx context.Context, streamType string, streamID int64, fromVersion, toVersion int) ([]Event, error) {
	ctx, span := s.tracer.Start(ctx, "eventstore.load",
		trace.WithAttributes(
			attribute.String("stream.type", streamType),
			attribute.Int64("stream.id", streamID),
			attribute.Int("from.version", fromVersion),
			attribute.Int("to.version", toVersion),
		),
	)
	defer span.End()

	query := `
		SELECT id, event_id, stream_type, stream_id, event_type, event_data, metadata, version, created_at
		FROM events
		WHERE stream_type = $1 AND stream_id = $2
		AND version >= $3
	`

	args := []interface{}{streamType, streamID, fromVersion}

	if toVersion > 0 {
		query += " AND version <= $4"
		args = append(args, toVersion)
	}

	query += " ORDER BY version ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var metadataJSON []byte

		err := rows.Scan(
			&event.ID,
			&event.EventID,
			&event.StreamType,
			&event.StreamID,
			&event.EventType,
			&event.EventData,
			&metadataJSON,
			&event.Version,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		if len(metadataJSON) > 0 {
			json.Unmarshal(metadataJSON, &event.Metadata)
		}

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

// CurrentVersion returns the latest version of a stream, 0 for a new stream.
func (s *Store) CurrentVersion(ctx context.Context, streamType string, streamID int64) (int, error) {
	ctx, span := s.tracer.Start(ctx, "eventstore.current_version",
		trace.WithAttributes(
			attribute.String("stream.type", streamType),
			attribute.Int64("stream.id", streamID),
		),
	)
	defer span.End()

	var version int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM events
		WHERE stream_type = $1 AND stream_id = $2
	`, streamType, streamID).Scan(&version)

	if err != nil && err != sql.ErrNoRows {
		return 0, fmt.Errorf("query version: %w", err)
	}

	span.SetAttributes(attribute.Int("current.version", version))
	return version, nil
}
