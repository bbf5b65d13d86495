package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/kzcare/crm/pkg/auth"
	"github.com/kzcare/crm/pkg/contextkeys"
	"github.com/kzcare/crm/pkg/httputil"
	"github.com/kzcare/crm/pkg/models"
	"github.com/kzcare/crm/pkg/storage/postgres"
)

// AuthMiddleware authenticates requests with Bearer tokens.
type AuthMiddleware struct {
	tokens   *auth.Store
	users    *postgres.UserStore
	optional bool // pass unauthenticated requests through with no user
}

func NewAuthMiddleware(tokens *auth.Store, users *postgres.UserStore, optional bool) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, optional: optional}
}

// Handler validates the Authorization header, loads the owning user and
// attaches it to the request context.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		token, err := m.tokens.Validate(r.Context(), parts[1])
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		user, err := m.users.GetByID(r.Context(), token.UserID)
		if err != nil || !user.IsActive {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), contextkeys.UserKey, user)
		ctx = contextkeys.WithUserID(ctx, strconv.FormatInt(user.ID, 10))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromRequest returns the authenticated user, or nil when the
// request passed through an optional auth layer unauthenticated.
func UserFromRequest(r *http.Request) *models.User {
	user, _ := r.Context().Value(contextkeys.UserKey).(*models.User)
	return user
}

// RequireStaff rejects requests from non-staff users.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromRequest(r)
		if user == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		if !user.IsStaff && !user.IsSuperuser {
			httputil.WriteForbidden(w, "staff access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSuperuser rejects requests from everyone but superusers.
func RequireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromRequest(r)
		if user == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		if !user.IsSuperuser {
			httputil.WriteForbidden(w, "superuser access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
