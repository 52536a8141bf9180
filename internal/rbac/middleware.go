package rbac

import (
	"net/http"
	"strconv"
	"strings"

	"log/slog"

	"github.com/consigna/consigna/internal/platform/httpx"
	"github.com/consigna/consigna/internal/shared"
)

// Header names set by the upstream gateway after authenticating the caller.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// Middleware wires principal resolution and role checks for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// Principal reads the gateway headers into the request context. Requests without a valid
// principal continue anonymously; RequireRole rejects them later.
func (m Middleware) Principal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := m.parsePrincipal(r)
		if ok {
			r = r.WithContext(shared.ContextWithPrincipal(r.Context(), p))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole ensures the current caller holds one of the given roles.
func (m Middleware) RequireRole(roles ...shared.Role) func(http.Handler) http.Handler {
	allowed := normalizeRoles(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized), "missing actor headers")
				return
			}
			if len(allowed) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			if _, granted := allowed[p.Role]; granted {
				next.ServeHTTP(w, r)
				return
			}
			httpx.Problem(w, http.StatusForbidden, http.StatusText(http.StatusForbidden), "role "+string(p.Role)+" not allowed")
		})
	}
}

func (m Middleware) parsePrincipal(r *http.Request) (shared.Principal, bool) {
	rawID := strings.TrimSpace(r.Header.Get(HeaderActorID))
	rawRole := strings.TrimSpace(strings.ToLower(r.Header.Get(HeaderActorRole)))
	if rawID == "" || rawRole == "" {
		return shared.Principal{}, false
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		if m.Logger != nil {
			m.Logger.Warn("rbac parse actor id", slog.String("value", rawID))
		}
		return shared.Principal{}, false
	}
	role := shared.Role(rawRole)
	switch role {
	case shared.RoleOwner, shared.RoleSupplier, shared.RoleAdmin:
	default:
		if m.Logger != nil {
			m.Logger.Warn("rbac unknown role", slog.String("value", rawRole))
		}
		return shared.Principal{}, false
	}
	return shared.Principal{UserID: id, Role: role}, true
}

func normalizeRoles(roles []shared.Role) map[shared.Role]struct{} {
	unique := make(map[shared.Role]struct{}, len(roles))
	for _, r := range roles {
		r = shared.Role(strings.TrimSpace(strings.ToLower(string(r))))
		if r == "" {
			continue
		}
		unique[r] = struct{}{}
	}
	return unique
}
