package api

import (
	"net/http"
	"time"

	"github.com/kzcare/crm/pkg/auth"
	"github.com/kzcare/crm/pkg/httputil"
	"github.com/kzcare/crm/pkg/middleware"
)

type issueTokenRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	TTLHours int    `json:"ttl_hours,omitempty"`
}

type issueTokenResponse struct {
	Token     *auth.Token `json:"token"`
	Plaintext string      `json:"plaintext"`
}

// issueToken handles POST /api/v1/auth/tokens. Superusers mint tokens
// for any account; everyone else only for themselves.
func (s *Server) issueToken(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromRequest(r)

	var req issueTokenRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	target := caller
	if req.Username != "" && req.Username != caller.Username {
		if !caller.IsSuperuser {
			httputil.WriteForbidden(w, "only superusers issue tokens for other accounts")
			return
		}
		var ok bool
		if target, ok = s.explicitManager(r, req.Username); !ok {
			httputil.WriteNotFoundError(w, "user not found")
			return
		}
	}

	var expiresAt *time.Time
	if req.TTLHours > 0 {
		t := time.Now().Add(time.Duration(req.TTLHours) * time.Hour)
		expiresAt = &t
	}

	token, plaintext, err := s.deps.Tokens.Issue(r.Context(), target.ID, req.Name, expiresAt)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, issueTokenResponse{Token: token, Plaintext: plaintext})
}

// listTokens handles GET /api/v1/auth/tokens and returns the caller's
// own tokens, revoked included.
func (s *Server) listTokens(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromRequest(r)

	tokens, err := s.deps.Tokens.ListForUser(r.Context(), caller.ID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, tokens)
}

// revokeToken handles DELETE /api/v1/auth/tokens/{id}. Owners revoke
// their own tokens; superusers revoke anyone's.
func (s *Server) revokeToken(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromRequest(r)
	tokenID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if !caller.IsSuperuser {
		owned, err := s.deps.Tokens.ListForUser(r.Context(), caller.ID)
		if err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		mine := false
		for _, t := range owned {
			if t.ID == tokenID {
				mine = true
				break
			}
		}
		if !mine {
			httputil.WriteForbidden(w, "not your token")
			return
		}
	}

	if err := s.deps.Tokens.Revoke(r.Context(), tokenID); err != nil {
		httputil.WriteNotFoundError(w, "token not found or already revoked")
		return
	}
	httputil.WriteNoContent(w)
}
