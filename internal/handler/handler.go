package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appI18n "github.com/anandks/papergrader/internal/i18n"
	"github.com/anandks/papergrader/internal/model"
	"github.com/anandks/papergrader/internal/pipeline"
	"github.com/anandks/papergrader/internal/store"
)

// maxUploadBytes bounds one multipart grading request in memory.
const maxUploadBytes = 64 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	runner *pipeline.Runner
	config model.ServerConfig
}

// New creates a new Handler.
func New(s *store.Store, r *pipeline.Runner, cfg model.ServerConfig) (*Handler, error) {
	return &Handler{store: s, runner: r, config: cfg}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/login", h.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Post("/logout", h.handleLogout)

		r.With(requireRole(model.UserRoleTeacher, model.UserRoleAdmin)).
			Post("/grade", h.handleGrade)
		r.With(requireRole(model.UserRoleTeacher, model.UserRoleAdmin)).
			Get("/results/subject/{subject}", h.handleSubjectResults)
		r.With(requireRole(model.UserRoleTeacher, model.UserRoleAdmin)).
			Get("/export/{subject}", h.handleExport)

		r.Get("/results/student/{name}", h.handleStudentResults)
		r.Get("/results/{resultID}", h.handleResult)

		r.With(requireRole(model.UserRoleAdmin)).Get("/users", h.handleListUsers)
		r.With(requireRole(model.UserRoleAdmin)).Post("/users", h.handleCreateUser)
	})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// submissionOutcome is the JSON shape of one graded submission in a batch
// response. Error fields become plain strings.
type submissionOutcome struct {
	StudentName string               `json:"student_name"`
	ResultID    int64                `json:"result_id,omitempty"`
	Record      *model.GradingRecord `json:"record,omitempty"`
	Error       string               `json:"error,omitempty"`
	SaveError   string               `json:"save_error,omitempty"`
}

type batchResponse struct {
	Subject     string              `json:"subject"`
	Graded      int                 `json:"graded"`
	Message     string              `json:"message"`
	Submissions []submissionOutcome `json:"submissions"`
}

// handleGrade accepts a multipart form with one "key" file and up to the
// batch limit of "students" files, grades them, and returns the full report.
func (h *Handler) handleGrade(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	key, err := formSubmission(r, "key")
	if err != nil {
		respondError(w, http.StatusBadRequest, appI18n.T(r.Context(), "AnswerKeyRequired"))
		return
	}

	var students []pipeline.Submission
	for _, fh := range r.MultipartForm.File["students"] {
		sub, err := readSubmission(fh.Filename, fh)
		if err != nil {
			respondError(w, http.StatusBadRequest, "read "+fh.Filename+": "+err.Error())
			return
		}
		students = append(students, sub)
	}
	if len(students) == 0 {
		respondError(w, http.StatusBadRequest, appI18n.T(r.Context(), "SubmissionsRequired"))
		return
	}

	// Teachers grade their own subject; the form may override for admins.
	subject := user.Subject
	if s := r.FormValue("subject"); s != "" && (subject == "" || user.Role == model.UserRoleAdmin) {
		subject = s
	}
	if subject == "" {
		respondError(w, http.StatusBadRequest, "subject is required")
		return
	}

	report, err := h.runner.Run(r.Context(), key, students, subject, user.Username)
	if err != nil {
		if errors.Is(err, pipeline.ErrBatchLimit) {
			limit := h.config.MaxBatch
			if limit <= 0 {
				limit = pipeline.DefaultMaxBatch
			}
			respondError(w, http.StatusBadRequest, appI18n.Td(r.Context(), "BatchLimitExceeded",
				map[string]any{"Count": len(students), "Limit": limit}))
			return
		}
		slog.Error("grading run failed", "subject", subject, "error", err)
		respondError(w, http.StatusInternalServerError, appI18n.T(r.Context(), "GradingFailed"))
		return
	}

	resp := batchResponse{Subject: report.Subject}
	for _, sr := range report.Submissions {
		out := submissionOutcome{
			StudentName: sr.StudentName,
			ResultID:    sr.ResultID,
			Record:      sr.Record,
		}
		if sr.Err != nil {
			out.Error = sr.Err.Error()
		} else {
			resp.Graded++
		}
		if sr.SaveErr != nil {
			out.SaveError = sr.SaveErr.Error()
		}
		resp.Submissions = append(resp.Submissions, out)
	}
	resp.Message = appI18n.Tp(r.Context(), "SubmissionsGraded", resp.Graded)

	respondJSON(w, http.StatusOK, resp)
}

// handleStudentResults lists stored results for one student. Students may
// only view their own.
func (h *Handler) handleStudentResults(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	name := chi.URLParam(r, "name")

	if user.Role == model.UserRoleStudent && user.Username != name {
		respondError(w, http.StatusForbidden, appI18n.T(r.Context(), "Forbidden"))
		return
	}

	results, err := h.store.ResultsForStudent(name)
	if err != nil {
		slog.Error("query student results", "student", name, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if results == nil {
		results = []model.ResultRow{}
	}
	respondJSON(w, http.StatusOK, results)
}

func (h *Handler) handleSubjectResults(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")

	results, err := h.store.ResultsForSubject(subject)
	if err != nil {
		slog.Error("query subject results", "subject", subject, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if results == nil {
		results = []model.ResultRow{}
	}
	respondJSON(w, http.StatusOK, results)
}

// handleResult returns one stored result with its per-question breakdown.
func (h *Handler) handleResult(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "resultID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid result ID")
		return
	}

	row, err := h.store.GetResult(id)
	if err != nil {
		respondError(w, http.StatusNotFound, appI18n.T(r.Context(), "ResultNotFound"))
		return
	}
	if user.Role == model.UserRoleStudent && user.Username != row.StudentName {
		respondError(w, http.StatusForbidden, appI18n.T(r.Context(), "Forbidden"))
		return
	}

	breakdown, err := h.store.DetailedResult(id)
	if err != nil {
		slog.Error("query result breakdown", "result_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"result":             row,
		"detailed_breakdown": breakdown,
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	subject := chi.URLParam(r, "subject")

	export, err := h.store.ExportSubject(subject)
	if err != nil {
		slog.Error("export subject", "subject", subject, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, export)
}

func formSubmission(r *http.Request, field string) (pipeline.Submission, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return pipeline.Submission{}, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return pipeline.Submission{}, err
	}
	return pipeline.Submission{Filename: header.Filename, Data: data}, nil
}

func readSubmission(filename string, fh *multipart.FileHeader) (pipeline.Submission, error) {
	f, err := fh.Open()
	if err != nil {
		return pipeline.Submission{}, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return pipeline.Submission{}, err
	}
	return pipeline.Submission{Filename: filename, Data: data}, nil
}
