package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestAfterCommitRunsImmediatelyOutsideTx(t *testing.T) {
	ran := false
	AfterCommit(context.Background(), func(context.Context) { ran = true })
	require.True(t, ran)
}

func TestAfterCommitQueuesInsideTx(t *testing.T) {
	state := &txState{}
	ctx := context.WithValue(context.Background(), txContextKey{}, state)
	ran := false
	AfterCommit(ctx, func(context.Context) { ran = true })
	require.False(t, ran)
	require.Len(t, state.hooks, 1)
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	require.True(t, IsUniqueViolation(err))
	require.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, IsUniqueViolation(errors.New("boom")))
}
