// Package devapi serves an in-memory implementation of the activities REST
// API for local development and end-to-end tests.
package devapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"example.com/activitysync/internal/domain"
	"example.com/activitysync/internal/remote"
)

var tracer = otel.Tracer("example.com/activitysync/internal/devapi")

// Handler coordinates HTTP requests with the in-memory repository.
type Handler struct {
	repo   *InMemoryRepository
	logger *slog.Logger
}

// NewHandler builds a Handler. A nil logger falls back to slog.Default.
func NewHandler(repo *InMemoryRepository, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	h.handle(mux, "GET /activities", h.listActivities)
	h.handle(mux, "POST /activities", h.createActivity)
	h.handle(mux, "GET /activities/{id}", h.getActivity)
	h.handle(mux, "PUT /activities/{id}", h.updateActivity)
	h.handle(mux, "DELETE /activities/{id}", h.deleteActivity)
	h.handle(mux, "POST /activities/{id}/attend", h.attendActivity)
	h.handle(mux, "POST /follow/{username}", h.toggleFollowing)
	mux.HandleFunc("GET /healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (h *Handler) handle(mux *http.ServeMux, route string, fn http.HandlerFunc) {
	mux.Handle(route, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, route, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		fn(sw, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", sw.status))
		requestCounter.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
	}))
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "unauthorized", ErrMissingToken.Error(), nil)
		return domain.Identity{}, false
	}
	h.repo.EnsureUser(caller)
	return caller, true
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	filter, err := parseListFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items, page := h.repo.List(caller.Username, filter)
	views := make([]remote.ActivityView, 0, len(items))
	for _, a := range items {
		views = append(views, remote.NewActivityView(a))
	}

	header, err := json.Marshal(remote.PaginationView{
		CurrentPage:  page.CurrentPage,
		ItemsPerPage: page.ItemsPerPage,
		TotalItems:   page.TotalItems,
		TotalPages:   page.TotalPages,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set(remote.PaginationHeader, string(header))
	writeJSON(w, http.StatusOK, views)
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	var verr ValidationError
	f := ListFilter{
		IsGoing: q.Get("isGoing") == "true",
		IsHost:  q.Get("isHost") == "true",
	}
	if raw := q.Get("pageNumber"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			verr.add("pageNumber", "PageNumber must be a positive integer")
		}
		f.PageNumber = n
	}
	if raw := q.Get("pageSize"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			verr.add("pageSize", "PageSize must be a positive integer")
		}
		f.PageSize = n
	}
	if raw := q.Get("startDate"); raw != "" {
		start, err := remote.ParseDate(raw)
		if err != nil {
			verr.add("startDate", "StartDate must be an RFC 3339 timestamp")
		}
		f.StartDate = start
	}
	return f, verr.orNil()
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	a, err := h.repo.Get(caller.Username, r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, remote.NewActivityView(a))
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var form remote.ActivityForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid_request", "unable to parse body", nil)
		return
	}
	draft := domain.ActivityDraft{
		ID:          form.ID,
		Title:       form.Title,
		Description: form.Description,
		Category:    form.Category,
		City:        form.City,
		Venue:       form.Venue,
	}
	if form.Date != "" {
		date, err := remote.ParseDate(form.Date)
		if err != nil {
			h.writeError(w, r, &ValidationError{Fields: map[string][]string{"date": {"Date must be an RFC 3339 timestamp"}}})
			return
		}
		draft.Date = date
	}

	if err := h.repo.Create(caller, draft); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "activity created", "activity_id", draft.ID, "host", caller.Username)
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	var form remote.ActivityPatchForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid_request", "unable to parse body", nil)
		return
	}
	if form.ID != "" && form.ID != id {
		h.writeError(w, r, &ValidationError{Fields: map[string][]string{"id": {"Id does not match the route"}}})
		return
	}

	patch := domain.ActivityPatch{
		ID:          id,
		Title:       form.Title,
		Description: form.Description,
		Category:    form.Category,
		City:        form.City,
		Venue:       form.Venue,
	}
	if form.Date != nil {
		date, err := remote.ParseDate(*form.Date)
		if err != nil {
			h.writeError(w, r, &ValidationError{Fields: map[string][]string{"date": {"Date must be an RFC 3339 timestamp"}}})
			return
		}
		patch.Date = &date
	}

	if err := h.repo.Update(caller.Username, patch); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.repo.Delete(caller.Username, r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) attendActivity(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.repo.Attend(caller, r.PathValue("id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) toggleFollowing(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := h.repo.ToggleFollowing(caller, r.PathValue("username")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeProblem(w, http.StatusBadRequest, "validation_failed", "One or more validation errors occurred.", verr.Fields)
	case errors.Is(err, ErrActivityNotFound), errors.Is(err, ErrUserNotFound):
		writeProblem(w, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, ErrNotHost):
		writeProblem(w, http.StatusForbidden, "forbidden", err.Error(), nil)
	case errors.Is(err, ErrDuplicateID), errors.Is(err, ErrSelfFollow):
		writeProblem(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
	default:
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeProblem(w, http.StatusInternalServerError, "server_error", err.Error(), nil)
	}
}

func writeProblem(w http.ResponseWriter, status int, code, detail string, fields map[string][]string) {
	writeJSON(w, status, remote.Problem{
		Type:   code,
		Title:  http.StatusText(status),
		Detail: detail,
		Errors: fields,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// NewRouter assembles the authenticated API with health and metrics endpoints.
func NewRouter(h *Handler, auth Middleware, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	return auth.Wrap(mux)
}
