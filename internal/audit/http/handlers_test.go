package audithttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/consigna/consigna/internal/shared"
)

type stubTrailService struct {
	entries []shared.AuditLog
	lastID  int64
}

func (s *stubTrailService) Trail(ctx context.Context, entityType string, entityID int64) ([]shared.AuditLog, error) {
	s.lastID = entityID
	return s.entries, nil
}

type stubAccess struct {
	ownerID int64
}

func (s stubAccess) AuthorizeOwner(ctx context.Context, viewer shared.Principal, trxID int64) error {
	if !viewer.IsOwner() || viewer.UserID != s.ownerID {
		return shared.ErrForbidden
	}
	return nil
}

func newAuditRouter(service *stubTrailService) http.Handler {
	r := chi.NewRouter()
	r.Route("/audit", NewHandler(nil, service, stubAccess{ownerID: 7}).MountRoutes)
	return r
}

func request(p shared.Principal, target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return req.WithContext(shared.ContextWithPrincipal(req.Context(), p))
}

func TestTrailRequiresOwner(t *testing.T) {
	service := &stubTrailService{}
	rr := httptest.NewRecorder()
	newAuditRouter(service).ServeHTTP(rr, request(shared.Principal{UserID: 9, Role: shared.RoleSupplier}, "/audit/transactions/5"))
	require.Equal(t, http.StatusForbidden, rr.Code)
	require.Zero(t, service.lastID)
}

func TestTrailReturnsEntries(t *testing.T) {
	service := &stubTrailService{entries: []shared.AuditLog{{Action: "cancel", EntityType: entityTransaction, EntityID: "5"}}}
	rr := httptest.NewRecorder()
	newAuditRouter(service).ServeHTTP(rr, request(shared.Principal{UserID: 7, Role: shared.RoleOwner}, "/audit/transactions/5"))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, int64(5), service.lastID)
	require.Contains(t, rr.Body.String(), `"action":"cancel"`)
}

func TestTrailRejectsBadID(t *testing.T) {
	rr := httptest.NewRecorder()
	newAuditRouter(&stubTrailService{}).ServeHTTP(rr, request(shared.Principal{UserID: 7, Role: shared.RoleOwner}, "/audit/transactions/abc"))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
