package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// TranscriptMessage is one chat message kept for operators and audits.
type TranscriptMessage struct {
	ID        uuid.UUID `json:"id"`
	LeadID    string    `json:"lead_id"`
	Direction string    `json:"direction"`
	Kind      string    `json:"kind,omitempty"`
	Body      string    `json:"body"`
	MediaURL  string    `json:"media_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TranscriptStore appends chat messages to PostgreSQL through database/sql.
type TranscriptStore struct {
	db *sql.DB
}

// NewTranscriptStore returns nil when db is nil so callers can skip transcripts.
func NewTranscriptStore(db *sql.DB) *TranscriptStore {
	if db == nil {
		return nil
	}
	return &TranscriptStore{db: db}
}

func (s *TranscriptStore) Append(ctx context.Context, msg TranscriptMessage) error {
	if s == nil || s.db == nil {
		return nil
	}
	if msg.LeadID == "" {
		return ErrLeadIDRequired
	}
	if msg.Direction != DirectionInbound && msg.Direction != DirectionOutbound {
		return fmt.Errorf("conversation: invalid direction %q", msg.Direction)
	}
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, lead_id, direction, kind, body, media_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, msg.ID, msg.LeadID, msg.Direction, msg.Kind, msg.Body, msg.MediaURL, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("conversation: append transcript: %w", err)
	}
	return nil
}

// List returns the most recent messages for a lead in chronological order.
func (s *TranscriptStore) List(ctx context.Context, leadID string, limit int) ([]TranscriptMessage, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if leadID == "" {
		return nil, ErrLeadIDRequired
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, lead_id, direction, kind, body, media_url, created_at
		FROM (
			SELECT id, lead_id, direction, kind, body, media_url, created_at
			FROM chat_messages
			WHERE lead_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`, leadID, limit)
	if err != nil {
		return nil, fmt.Errorf("conversation: list transcript: %w", err)
	}
	defer rows.Close()

	var out []TranscriptMessage
	for rows.Next() {
		var (
			m        TranscriptMessage
			kind     sql.NullString
			mediaURL sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.LeadID, &m.Direction, &kind, &m.Body, &mediaURL, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("conversation: scan transcript: %w", err)
		}
		m.Kind = kind.String
		m.MediaURL = mediaURL.String
		out = append(out, m)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("conversation: iterate transcript: %w", err)
	}
	return out, nil
}
