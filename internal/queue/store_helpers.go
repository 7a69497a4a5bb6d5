package queue

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const itemColumns = "seq, id, kind, payload_json, status, attempts, last_error, last_attempt_at, created_at"

// idSuffixLength matches the random suffix length of identifiers minted by
// earlier clients, so ids from either source sort and display alike.
const idSuffixLength = 9

// NewID returns "<unix milliseconds>-<random suffix>". Ids are practically
// unique, not guaranteed; the store enforces uniqueness on insert.
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:idSuffixLength]
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix)
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		seq            int64
		id             string
		kind           string
		payloadJSON    string
		status         string
		attempts       int
		lastError      sql.NullString
		lastAttemptRaw sql.NullString
		createdRaw     string
	)
	if err := scanner.Scan(
		&seq,
		&id,
		&kind,
		&payloadJSON,
		&status,
		&attempts,
		&lastError,
		&lastAttemptRaw,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		Seq:       seq,
		ID:        id,
		Kind:      Kind(kind),
		Status:    Status(status),
		Attempts:  attempts,
		LastError: lastError.String,
	}
	// A corrupt row must not hide the rest of the queue.
	payload, err := decodePayload(Kind(kind), []byte(payloadJSON))
	if err != nil {
		item.PayloadErr = fmt.Errorf("decode payload for item %s: %w", id, err)
	} else {
		item.Payload = payload
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if lastAttemptRaw.Valid {
		if at, err := parseTimeString(lastAttemptRaw.String); err == nil {
			item.LastAttemptAt = &at
		}
	}
	return item, nil
}

func scanItems(rows *sql.Rows) ([]*Item, error) {
	defer rows.Close()
	items := make([]*Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
