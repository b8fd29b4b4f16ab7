package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type fakeExec struct {
	sql  string
	args []any
	err  error
}

func (f *fakeExec) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql, f.args = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func TestInsertGeneratesCallID(t *testing.T) {
	fe := &fakeExec{}
	repo := &LLMAuditRepo{db: fe}
	err := repo.Insert(context.Background(), LLMCallRecord{
		Operation:    "cv_analysis",
		ProviderName: "openai",
		Model:        "gpt-3.5-turbo",
		RequestID:    "req-1",
		Status:       StatusOK,
		LatencyMS:    120,
	})
	require.NoError(t, err)
	require.Contains(t, fe.sql, "INSERT INTO llm_calls")
	require.Len(t, fe.args, 8)
	_, parseErr := uuid.Parse(fe.args[0].(string))
	require.NoError(t, parseErr)
	require.Equal(t, "cv_analysis", fe.args[1])
	require.Equal(t, int64(120), fe.args[7])
}

func TestInsertWrapsError(t *testing.T) {
	repo := &LLMAuditRepo{db: &fakeExec{err: errors.New("relation llm_calls does not exist")}}
	err := repo.Insert(context.Background(), LLMCallRecord{CallID: uuid.NewString()})
	require.ErrorContains(t, err, "insert llm call")
}
