package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-shop-orders.git/internal/orders"
)

// Identity headers are set by the gateway in front of the API.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

type actorKey struct{}

// RequireActor rejects requests without a well-formed identity with 401.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderUserID))
		role, err := orders.ParseRole(strings.TrimSpace(r.Header.Get(HeaderUserRole)))
		if id == "" || err != nil {
			writeJSON(w, http.StatusUnauthorized, ErrorBody{
				Error:   CodeUnauthorized,
				Message: "missing or invalid " + HeaderUserID + "/" + HeaderUserRole,
			})
			return
		}
		ctx := context.WithValue(r.Context(), actorKey{}, orders.Actor{ID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFrom(ctx context.Context) orders.Actor {
	a, _ := ctx.Value(actorKey{}).(orders.Actor)
	return a
}

// requireCustomer answers 403 and reports false for non-customers.
func requireCustomer(w http.ResponseWriter, a orders.Actor, action string) bool {
	if a.Role == orders.RoleCustomer {
		return true
	}
	writeError(w, &orders.PermissionError{Actor: a.Role.String() + " " + a.ID, Action: action})
	return false
}
