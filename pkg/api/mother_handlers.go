package api

import (
	"net/http"

	"github.com/kzcare/crm/pkg/adminview"
	"github.com/kzcare/crm/pkg/httputil"
	"github.com/kzcare/crm/pkg/middleware"
	"github.com/kzcare/crm/pkg/models"
	"github.com/kzcare/crm/pkg/perms"
)

// motherResponse is a mother plus her creation instant rendered in the
// caller's timezone.
type motherResponse struct {
	*models.Mother
	WhenCreated string `json:"when_created"`
}

func (s *Server) motherResponses(caller *models.User, mothers []*models.Mother) []motherResponse {
	out := make([]motherResponse, len(mothers))
	for i, m := range mothers {
		out[i] = motherResponse{Mother: m, WhenCreated: adminview.WhenCreated(m.CreatedAt, caller.Timezone)}
	}
	return out
}

type createMotherRequest struct {
	models.Mother
	ManagerUsername string `json:"manager_username,omitempty"`
}

type assignedResponse struct {
	Mother  motherResponse `json:"mother"`
	Manager string         `json:"manager,omitempty"`
}

// listMothers handles GET /api/v1/mothers. The panel gate applies: a
// user with no actionable record sees 403, superusers included.
func (s *Server) listMothers(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromRequest(r)

	if !s.motherPanel.ModuleAllowed(r.Context(), caller) {
		httputil.WriteForbidden(w, "panel not available")
		return
	}

	mothers, err := s.motherPanel.Queryset(r.Context(), caller)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, s.motherResponses(caller, mothers))
}

// createMother handles POST /api/v1/mothers.
func (s *Server) createMother(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromRequest(r)

	var req createMotherRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	explicit, ok := s.explicitManager(r, req.ManagerUsername)
	if !ok {
		httputil.WriteNotFoundError(w, "manager not found")
		return
	}

	mother := req.Mother
	manager, err := s.deps.Pipeline.CreateMother(r.Context(), &mother, explicit)
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}

	resp := assignedResponse{
		Mother: motherResponse{Mother: &mother, WhenCreated: adminview.WhenCreated(mother.CreatedAt, caller.Timezone)},
	}
	if manager != nil {
		resp.Manager = manager.Username
	}
	httputil.WriteCreated(w, resp)
}

// getMother handles GET /api/v1/mothers/{id}. Object access follows
// grants, with the superuser override.
func (s *Server) getMother(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromRequest(r)
	motherID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if !s.deps.Checker.CanObject(r.Context(), caller, perms.ActionView, perms.ModelMother, motherID) {
		httputil.WriteForbidden(w, "permission denied")
		return
	}

	mother, err := s.deps.Mothers.GetByID(r.Context(), motherID)
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, motherResponse{Mother: mother, WhenCreated: adminview.WhenCreated(mother.CreatedAt, caller.Timezone)})
}

// updateMother handles PUT /api/v1/mothers/{id}.
func (s *Server) updateMother(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromRequest(r)
	motherID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if !s.deps.Checker.CanObject(r.Context(), caller, perms.ActionChange, perms.ModelMother, motherID) {
		httputil.WriteForbidden(w, "permission denied")
		return
	}

	var update models.Mother
	if !httputil.ParseJSONOrError(w, r, &update) {
		return
	}
	update.ID = motherID

	if err := s.deps.Mothers.Update(r.Context(), &update); err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, update)
}

// deleteMother handles DELETE /api/v1/mothers/{id}. Only records on
// the trash stage can be deleted for good.
func (s *Server) deleteMother(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromRequest(r)
	motherID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if !s.deps.Checker.CanObject(r.Context(), caller, perms.ActionDelete, perms.ModelMother, motherID) {
		httputil.WriteForbidden(w, "permission denied")
		return
	}

	if err := s.deps.Pipeline.DeleteFromTrash(r.Context(), motherID); err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

type transitionRequest struct {
	Comment         string `json:"comment,omitempty"`
	Description     string `json:"description,omitempty"`
	ManagerUsername string `json:"manager_username,omitempty"`
}

func (s *Server) parseTransition(w http.ResponseWriter, r *http.Request) (int64, transitionRequest, *models.User, bool) {
	motherID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return 0, transitionRequest{}, nil, false
	}

	var req transitionRequest
	if r.ContentLength > 0 && !httputil.ParseJSONOrError(w, r, &req) {
		return 0, transitionRequest{}, nil, false
	}

	explicit, found := s.explicitManager(r, req.ManagerUsername)
	if !found {
		httputil.WriteNotFoundError(w, "manager not found")
		return 0, transitionRequest{}, nil, false
	}
	return motherID, req, explicit, true
}

// moveToBan handles POST /api/v1/mothers/{id}/ban. Opening a ban is
// gated by the add permission on the mother; the panel itself never
// lists, so this is the single entry point.
func (s *Server) moveToBan(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromRequest(r)
	motherID, req, explicit, ok := s.parseTransition(w, r)
	if !ok {
		return
	}

	if !s.banAddPanel.CanAdd(r.Context(), caller, motherID) {
		httputil.WriteForbidden(w, "permission denied")
		return
	}

	ban, manager, err := s.deps.Pipeline.MoveToBan(r.Context(), motherID, req.Comment, explicit)
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}

	resp := map[string]any{"ban": ban}
	if manager != nil {
		resp["manager"] = manager.Username
	}
	httputil.WriteCreated(w, resp)
}

// moveToFirstVisit handles POST /api/v1/mothers/{id}/first-visit.
func (s *Server) moveToFirstVisit(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromRequest(r)
	motherID, _, explicit, ok := s.parseTransition(w, r)
	if !ok {
		return
	}

	if !s.deps.Checker.CanObject(r.Context(), caller, perms.ActionChange, perms.ModelMother, motherID) {
		httputil.WriteForbidden(w, "permission denied")
		return
	}

	manager, err := s.deps.Pipeline.MoveToFirstVisit(r.Context(), motherID, explicit)
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	s.writeManager(w, manager)
}

// moveToTrash handles POST /api/v1/mothers/{id}/trash.
func (s *Server) moveToTrash(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromRequest(r)
	motherID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if !s.deps.Checker.CanObject(r.Context(), caller, perms.ActionChange, perms.ModelMother, motherID) {
		httputil.WriteForbidden(w, "permission denied")
		return
	}

	if err := s.deps.Pipeline.MoveToTrash(r.Context(), motherID); err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// returnFromTrash handles POST /api/v1/mothers/{id}/return-from-trash.
func (s *Server) returnFromTrash(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromRequest(r)
	motherID, _, explicit, ok := s.parseTransition(w, r)
	if !ok {
		return
	}

	if !s.deps.Checker.CanObject(r.Context(), caller, perms.ActionChange, perms.ModelMother, motherID) {
		httputil.WriteForbidden(w, "permission denied")
		return
	}

	manager, err := s.deps.Pipeline.ReturnFromTrash(r.Context(), motherID, explicit)
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	s.writeManager(w, manager)
}

// revokeMother handles POST /api/v1/mothers/{id}/revoke.
func (s *Server) revokeMother(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromRequest(r)
	motherID, req, _, ok := s.parseTransition(w, r)
	if !ok {
		return
	}

	if !s.deps.Checker.CanObject(r.Context(), caller, perms.ActionChange, perms.ModelMother, motherID) {
		httputil.WriteForbidden(w, "permission denied")
		return
	}

	if err := s.deps.Pipeline.Revoke(r.Context(), motherID, req.Description); err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// returnMother handles POST /api/v1/mothers/{id}/return and undoes a
// revocation.
func (s *Server) returnMother(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromRequest(r)
	motherID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if !s.deps.Checker.CanObject(r.Context(), caller, perms.ActionChange, perms.ModelMother, motherID) {
		httputil.WriteForbidden(w, "permission denied")
		return
	}

	if err := s.deps.Pipeline.Return(r.Context(), motherID); err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (s *Server) writeManager(w http.ResponseWriter, manager *models.User) {
	resp := map[string]any{}
	if manager != nil {
		resp["manager"] = manager.Username
	}
	httputil.WriteSuccess(w, resp)
}
