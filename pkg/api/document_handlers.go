package api

import (
	"io"
	"net/http"

	"github.com/kzcare/crm/pkg/httputil"
	"github.com/kzcare/crm/pkg/middleware"
	"github.com/kzcare/crm/pkg/models"
	"github.com/kzcare/crm/pkg/perms"
)

// maxDocumentBytes caps a single uploaded file at 32 MiB.
const maxDocumentBytes = 32 << 20

// uploadDocument handles POST /api/v1/mothers/{id}/documents as a
// multipart form: "file" plus "kind" and optional "note" fields. The
// blob goes to object storage, the metadata row to postgres.
func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromRequest(r)
	motherID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if !s.deps.Checker.CanObject(r.Context(), caller, perms.ActionChange, perms.ModelMother, motherID) {
		httputil.WriteForbidden(w, "permission denied")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBytes)
	if err := r.ParseMultipartForm(maxDocumentBytes); err != nil {
		httputil.WriteBadRequest(w, "invalid multipart form")
		return
	}

	kind := models.DocumentKind(r.FormValue("kind"))
	if kind == "" {
		httputil.WriteValidationError(w, "kind is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteValidationError(w, "file is required")
		return
	}
	defer file.Close()

	key, err := s.deps.Blobs.Put(r.Context(), motherID, kind, header.Filename,
		file, header.Header.Get("Content-Type"))
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	doc := &models.Document{
		MotherID:  motherID,
		Kind:      kind,
		Name:      header.Filename,
		Note:      r.FormValue("note"),
		ObjectKey: key,
	}
	if err := s.deps.Documents.Create(r.Context(), doc); err != nil {
		// The blob is orphaned; remove it so storage stays consistent.
		_ = s.deps.Blobs.Delete(r.Context(), key)
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, doc)
}

// listDocuments handles GET /api/v1/mothers/{id}/documents?kind=.
func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromRequest(r)
	motherID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if !s.documentPanel.CanView(r.Context(), caller, motherID) {
		httputil.WriteForbidden(w, "permission denied")
		return
	}

	kind := models.DocumentKind(httputil.ParseQueryString(r, "kind", ""))
	docs, err := s.documentPanel.Queryset(r.Context(), caller, motherID, kind)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, docs)
}

// downloadDocument handles GET /api/v1/documents/{id}/download and
// streams the stored file.
func (s *Server) downloadDocument(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromRequest(r)
	docID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	doc, err := s.deps.Documents.GetByID(r.Context(), docID)
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}

	if !s.documentPanel.CanView(r.Context(), caller, doc.MotherID) {
		httputil.WriteForbidden(w, "permission denied")
		return
	}

	body, err := s.deps.Blobs.Get(r.Context(), doc.ObjectKey)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Name+`"`)
	if _, err := io.Copy(w, body); err != nil {
		s.deps.Logger.WithError(err).Warn("document stream interrupted")
	}
}

// deleteDocument handles DELETE /api/v1/documents/{id}.
func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	caller := middleware.UserFromRequest(r)
	docID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	doc, err := s.deps.Documents.GetByID(r.Context(), docID)
	if err != nil {
		s.writePipelineError(w, r, err)
		return
	}

	if !s.deps.Checker.CanObject(r.Context(), caller, perms.ActionChange, perms.ModelMother, doc.MotherID) {
		httputil.WriteForbidden(w, "permission denied")
		return
	}

	if err := s.deps.Documents.Delete(r.Context(), docID); err != nil {
		s.writePipelineError(w, r, err)
		return
	}
	// Metadata is the source of truth; a failed blob delete only leaks
	// storage and is logged, not surfaced.
	if err := s.deps.Blobs.Delete(r.Context(), doc.ObjectKey); err != nil {
		s.deps.Logger.WithError(err).WithField("object_key", doc.ObjectKey).Warn("blob delete failed")
	}
	httputil.WriteNoContent(w)
}
