package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/kzcare/crm/pkg/audit"
	"github.com/kzcare/crm/pkg/httputil"
)

// searchAudit handles GET /api/v1/audit. Query params: event_types
// (comma separated), user_id, resource_type, resource_id, since, until
// (RFC3339), limit.
func (s *Server) searchAudit(w http.ResponseWriter, r *http.Request) {
	var filter audit.SearchFilter

	if raw := httputil.ParseQueryString(r, "event_types", ""); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			filter.EventTypes = append(filter.EventTypes, audit.EventType(strings.TrimSpace(t)))
		}
	}
	if userID, err := httputil.ParseQueryInt64(r, "user_id", 0); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	} else if userID != 0 {
		filter.UserID = &userID
	}
	filter.ResourceType = audit.ResourceType(httputil.ParseQueryString(r, "resource_type", ""))
	filter.ResourceID = httputil.ParseQueryString(r, "resource_id", "")

	for _, bound := range []struct {
		name string
		dst  **time.Time
	}{
		{"since", &filter.Since},
		{"until", &filter.Until},
	} {
		if raw := httputil.ParseQueryString(r, bound.name, ""); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				httputil.WriteBadRequest(w, "invalid "+bound.name+" timestamp")
				return
			}
			*bound.dst = &t
		}
	}

	limit, err := httputil.ParseQueryInt(r, "limit", 100)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	filter.Limit = limit

	events, err := s.deps.Audit.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, events)
}
