package cutoff

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/consigna/consigna/internal/rbac"
	"github.com/consigna/consigna/internal/shared"
)

type stubRunner struct {
	calls int
}

func (s *stubRunner) SweepAll(ctx context.Context, now time.Time) (Summary, error) {
	s.calls++
	return Summary{StoresProcessed: 3, TransactionsCancelled: 2, Failures: []Failure{}}, nil
}

func TestManualSweepRequiresAdmin(t *testing.T) {
	runner := &stubRunner{}
	r := chi.NewRouter()
	r.Route("/cutoff", NewHandler(runner, rbac.Middleware{}, nil).MountRoutes)

	req := httptest.NewRequest(http.MethodPost, "/cutoff/sweep", nil)
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 1, Role: shared.RoleOwner}))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Zero(t, runner.calls)

	req = httptest.NewRequest(http.MethodPost, "/cutoff/sweep", nil)
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), shared.Principal{UserID: 1, Role: shared.RoleAdmin}))
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var summary Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	require.Equal(t, 2, summary.TransactionsCancelled)
	require.Equal(t, 1, runner.calls)
}
