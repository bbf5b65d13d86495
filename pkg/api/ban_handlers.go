package api

import (
	"net/http"

	"github.com/kzcare/crm/pkg/adminview"
	"github.com/kzcare/crm/pkg/httputil"
	"github.com/kzcare/crm/pkg/middleware"
	"github.com/kzcare/crm/pkg/models"
)

// listBans handles GET /api/v1/bans: unresolved bans whose mother is
// still on the ban stage, scoped to the caller's grants.
func (s *Server) listBans(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromRequest(r)

	if !s.banListPanel.ModuleAllowed(r.Context(), caller) {
		httputil.WriteForbidden(w, "panel not available")
		return
	}

	bans, err := s.banListPanel.Queryset(r.Context(), caller)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, bans)
}

// outFromBan handles POST /api/v1/bans/{id}/out-from-ban.
func (s *Server) outFromBan(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromRequest(r)
	banID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	manager, err := s.banListPanel.OutFromBan(r.Context(), caller, banID)
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	s.writeManager(w, manager)
}

// listFirstVisit handles GET /api/v1/first-visit.
func (s *Server) listFirstVisit(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromRequest(r)

	if !s.firstVisitPanel.ModuleAllowed(r.Context(), caller) {
		httputil.WriteForbidden(w, "panel not available")
		return
	}

	var mothers []*models.Mother
	var err error
	switch plan := httputil.ParseQueryString(r, "plan", ""); plan {
	case "with", "without":
		var withPlan, withoutPlan []*models.Mother
		withPlan, withoutPlan, err = s.firstVisitPanel.SplitByPlan(r.Context(), caller)
		if plan == "with" {
			mothers = withPlan
		} else {
			mothers = withoutPlan
		}
	case "":
		mothers, err = s.firstVisitPanel.Queryset(r.Context(), caller)
	default:
		httputil.WriteBadRequest(w, "plan must be \"with\" or \"without\"")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, s.motherResponses(caller, mothers))
}

type panelFieldsResponse struct {
	Mode     string   `json:"mode"`
	Fields   []string `json:"fields"`
	Readonly []string `json:"readonly,omitempty"`
}

// panelFields handles GET /api/v1/panels/{panel}/fields?mode=. The
// frontend renders forms from this instead of hardcoding layouts.
func (s *Server) panelFields(w http.ResponseWriter, r *http.Request) {
	panel, ok := httputil.ParsePathStringOrError(w, r, "panel")
	if !ok {
		return
	}
	mode := adminview.ParseViewMode(httputil.ParseQueryString(r, "mode", ""))

	resp := panelFieldsResponse{Mode: mode.String()}
	switch panel {
	case "mothers":
		resp.Fields = s.motherPanel.Fields(mode)
		resp.Readonly = s.motherPanel.ReadonlyFields(mode)
	case "bans":
		resp.Fields = s.banAddPanel.Fields(mode)
	case "first-visit":
		resp.Fields = s.firstVisitPanel.Fields(mode)
	case "documents":
		resp.Fields = s.documentPanel.Fields(mode)
	default:
		httputil.WriteNotFoundError(w, "unknown panel")
		return
	}
	httputil.WriteSuccess(w, resp)
}
