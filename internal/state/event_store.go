// ./internal/state/event_store.go
package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridianfi/fvm/internal/types"
)

// EventRecord is a stored engine event as seen by off-chain indexers.
type EventRecord struct {
	ReceiptID  string          `json:"receipt_id"`
	Subject    string          `json:"subject"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	EngineTime uint64          `json:"engine_time"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// RecordEvent stores an engine event against the pool or vault it concerns
// and returns the generated receipt id.
func RecordEvent(subject types.Principal, ev types.Event, engineTime uint64) (string, error) {
	if DB == nil {
		return "", fmt.Errorf("database not initialized")
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to marshal event payload: %w", err)
	}

	receiptID := uuid.New().String()
	query := `
		INSERT INTO events (receipt_id, subject, name, payload, engine_time)
		VALUES ($1, $2, $3, $4, $5);
	`
	if _, err := DB.Exec(query, receiptID, subject.String(), ev.Name(), payload, engineTime); err != nil {
		return "", fmt.Errorf("failed to record event: %w", err)
	}
	return receiptID, nil
}

// ListEvents returns the most recent events for a subject, newest first.
func ListEvents(subject types.Principal, limit int) ([]EventRecord, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := DB.Query(`
		SELECT receipt_id, subject, name, payload, engine_time, recorded_at
		FROM events
		WHERE subject = $1
		ORDER BY recorded_at DESC
		LIMIT $2;
	`, subject.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var ev EventRecord
		if err := rows.Scan(&ev.ReceiptID, &ev.Subject, &ev.Name, &ev.Payload, &ev.EngineTime, &ev.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
