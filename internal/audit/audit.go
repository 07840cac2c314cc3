// Package audit records traceability entries for money movements the game
// applies on players' behalf, such as the operating costs deducted each tick.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Action struct {
	ActorID     string
	ActionType  string
	Category    string
	Description string
	Metadata    map[string]any
}

type Logger struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func NewLogger(db *pgxpool.Pool, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{db: db, log: logger}
}

func (l *Logger) LogAction(ctx context.Context, a Action) error {
	var meta *string
	if a.Metadata != nil {
		raw, err := json.Marshal(a.Metadata)
		if err != nil {
			return err
		}
		s := string(raw)
		meta = &s
	}
	var actor *string
	if a.ActorID != "" {
		actor = &a.ActorID
	}
	_, err := l.db.Exec(ctx, `
		INSERT INTO game.audit_log (actor_id, action_type, category, description, metadata)
		VALUES ($1, $2, $3, $4, $5::jsonb)
	`, actor, a.ActionType, a.Category, a.Description, meta)
	return err
}
