package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

type LLMCallRecord struct {
	CallID       string
	Operation    string
	ProviderName string
	Model        string
	RequestID    string
	Status       string
	ErrorType    string
	LatencyMS    int64
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// LLMAuditRepo records one row per provider call. Prompts and replies are
// never stored.
type LLMAuditRepo struct {
	db execer
}

func NewLLMAuditRepo(db *DB) *LLMAuditRepo {
	return &LLMAuditRepo{db: db.Pool}
}

func (r *LLMAuditRepo) Insert(ctx context.Context, rec LLMCallRecord) error {
	if rec.CallID == "" {
		rec.CallID = uuid.NewString()
	}
	_, err := r.db.Exec(ctx, `
INSERT INTO llm_calls(call_id, operation, provider_name, model, request_id, status, error_type, latency_ms)
VALUES ($1::uuid, $2, $3, $4, $5, $6, NULLIF($7,''), $8)`,
		rec.CallID, rec.Operation, rec.ProviderName, rec.Model, rec.RequestID, rec.Status, rec.ErrorType, rec.LatencyMS)
	if err != nil {
		return fmt.Errorf("insert llm call: %w", err)
	}
	return nil
}
