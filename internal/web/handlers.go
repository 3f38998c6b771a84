package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/Nikhilraj155/project-managment/internal/ingest"
	"github.com/Nikhilraj155/project-managment/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// validate checks request DTOs against their struct tags.
var validate = validator.New()

// maxMultipartMemory caps the in-memory portion of multipart parsing;
// larger files spill to temp storage.
const maxMultipartMemory = 32 << 20

// uploaderID resolves the acting user from the request. Authentication is
// handled by an upstream layer which injects the identity header.
func uploaderID(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return "anonymous"
}

// readUploadedFile extracts the "file" part from a multipart request.
func readUploadedFile(r *http.Request) ([]byte, string, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, "", &ingest.StructuralError{Msg: "no file provided: " + err.Error()}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", &ingest.StructuralError{Msg: "no file provided"}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	return data, header.Filename, nil
}

// handleUpload runs the full ingestion pipeline on an uploaded file.
// POST /api/allocations/upload
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	data, filename, err := readUploadedFile(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(r.Context()).Info("upload received",
		"file", filename,
		"size", len(data),
		"uploader", uploaderID(r),
	)

	result, err := s.service.Ingest(r.Context(), data, filename, uploaderID(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handlePreview returns a read-only structural preview of a spreadsheet.
// POST /api/allocations/preview
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	data, _, err := readUploadedFile(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	preview, err := s.service.PreviewSpreadsheet(r.Context(), data)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, preview)
}

// handleSummary returns overall derived aggregates.
// GET /api/allocations/summary
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.service.Summary(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleListRecords returns stored records, newest upload first.
// GET /api/allocations/records?limit=N
func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}

	writeJSON(w, http.StatusOK, s.service.ListRecords(r.Context(), limit))
}

// handlePatchRecord applies a partial update to one record.
// PATCH /api/allocations/records/{id}
func (s *Server) handlePatchRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var fields map[string]string
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		s.respondError(w, r, &ingest.ValidationError{Msg: "no valid fields to update: invalid JSON body"})
		return
	}

	rec, err := s.service.PatchRecord(r.Context(), id, fields)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// CreateGroupRequest is the manual group-creation payload.
type CreateGroupRequest struct {
	GroupNo      string                `json:"group_no" validate:"required"`
	TeamName     string                `json:"team_name"`
	GuideName    string                `json:"guide_name"`
	ProjectTitle string                `json:"project_title"`
	Students     []ingest.StudentEntry `json:"students" validate:"required,min=1,max=4"`
}

// handleCreateGroup creates one batch of records for a manual group.
// POST /api/allocations/groups
func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, &ingest.ValidationError{Msg: "invalid JSON body"})
		return
	}
	if err := validate.Struct(req); err != nil {
		s.respondError(w, r, validationErrorFor(err))
		return
	}

	result, err := s.service.CreateGroup(r.Context(), uploaderID(r),
		req.GroupNo, req.TeamName, req.GuideName, req.ProjectTitle, req.Students)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// validationErrorFor converts validator failures to the core's validation
// errors so they map to the same user messages as service-side checks.
func validationErrorFor(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return &ingest.ValidationError{Msg: err.Error()}
	}

	for _, fe := range verrs {
		switch fe.Field() {
		case "GroupNo":
			return &ingest.ValidationError{Msg: "group_no is required"}
		case "Students":
			if fe.Tag() == "max" {
				return &ingest.ValidationError{Msg: "maximum 4 students per group"}
			}
			return &ingest.ValidationError{Msg: "at least one student is required"}
		}
	}
	return &ingest.ValidationError{Msg: err.Error()}
}

// handleListBatches returns derived per-batch summaries.
// GET /api/allocations/batches
func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.ListBatches(r.Context()))
}

// handleDeleteBatch removes every record of one batch.
// DELETE /api/allocations/batches/{id}
func (s *Server) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := s.service.DeleteBatch(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleHealth reports service and store health.
// GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"store":  "unreachable",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
