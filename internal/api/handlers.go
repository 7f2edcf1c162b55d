package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/gtdspace/internal/calendar"
	"github.com/starford/gtdspace/internal/docservice"
	"github.com/starford/gtdspace/internal/models"
	"github.com/starford/gtdspace/internal/reschedule"
)

const maxBodyBytes = 1 << 20

// Handler holds API route handlers.
type Handler struct {
	svc *docservice.Service
	now func() time.Time
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service) *Handler {
	return &Handler{svc: svc, now: time.Now}
}

// docPath extracts the document path from the URL wildcard.
// Supports encoded slashes from OpenAPI clients (e.g. Projects%2FLaunch%2FREADME.md).
func docPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// window resolves start/end/span values into a calendar window. ok is false
// when no start was given.
func (h *Handler) window(start, end, span string) (calendar.Window, bool, error) {
	return calendar.ParseWindow(start, end, span, h.svc.Workspace().Location())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if vv, ok := v.(interface{ Validate() error }); ok {
		if err := vv.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return false
		}
	}
	return true
}

// GetCalendar handles GET /api/calendar.
//
//	@Summary		Reconciled schedule for a window
//	@Tags			calendar
//	@Produce		json
//	@Param			start	query		string	false	"First day (YYYY-MM-DD); defaults to the current window"
//	@Param			end		query		string	false	"Last day, inclusive"
//	@Param			span	query		string	false	"Length when end is omitted, e.g. 1w or 3d"
//	@Param			kinds	query		string	false	"Comma-separated entry kinds"	Enums(due, focus, habit, external)
//	@Success		200		{object}	ScheduleResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/calendar [get]
func (h *Handler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	win, ok, err := h.window(q.Get("start"), q.Get("end"), q.Get("span"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	kinds, err := calendar.ParseKinds(q.Get("kinds"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if !ok {
		win = h.svc.Workspace().Window()
	}
	sched := h.svc.Schedule(r.Context(), win, kinds)
	writeJSON(w, http.StatusOK, ScheduleResponse{Schedule: sched, GeneratedAt: h.now()})
}

// MoveEntry handles POST /api/calendar/move.
//
//	@Summary		Move a due or focus entry to another day or time
//	@Tags			calendar
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MoveRequest	true	"Move gesture"
//	@Success		200		{object}	GestureResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/calendar/move [post]
func (h *Handler) MoveEntry(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	win, _, err := h.window(req.Start, req.End, "")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	res, err := h.svc.MoveEntry(r.Context(), win, req.Gesture())
	if err != nil {
		writeError(w, "move entry", err)
		return
	}
	writeJSON(w, http.StatusOK, h.gestureResponse(res))
}

// ResizeEntry handles POST /api/calendar/resize.
//
//	@Summary		Change the effort of a focus entry
//	@Tags			calendar
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ResizeRequest	true	"Resize gesture"
//	@Success		200		{object}	GestureResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/calendar/resize [post]
func (h *Handler) ResizeEntry(w http.ResponseWriter, r *http.Request) {
	var req ResizeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	win, _, err := h.window(req.Start, req.End, "")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	res, err := h.svc.ResizeEntry(r.Context(), win, req.Gesture())
	if err != nil {
		writeError(w, "resize entry", err)
		return
	}
	writeJSON(w, http.StatusOK, h.gestureResponse(res))
}

func (h *Handler) gestureResponse(res reschedule.Result) GestureResponse {
	return GestureResponse{
		OpID:     res.OpID,
		Path:     res.Path,
		Key:      res.Key,
		OldValue: res.OldValue,
		NewValue: res.NewValue,
		Skipped:  res.Skipped,
		Schedule: h.svc.Workspace().Schedule(),
	}
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List indexed documents
//	@Tags			documents
//	@Produce		json
//	@Param			kind	query		string	false	"Filter by kind"	Enums(action, project, habit, area, goal, vision, purpose, generic)
//	@Success		200		{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	kind := models.Kind(r.URL.Query().Get("kind"))
	items, err := h.svc.ListDocuments(r.Context(), kind)
	if err != nil {
		writeError(w, "list documents", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: items, Total: len(items)})
}

// GetDocument handles GET /api/documents/*.
//
//	@Summary		Get a single document by path
//	@Tags			documents
//	@Produce		json
//	@Param			path	path		string	true	"Document path"
//	@Success		200		{object}	DocumentDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	doc, err := h.svc.GetDocument(r.Context(), path)
	if err != nil {
		writeError(w, "get document", err)
		return
	}
	w.Header().Set("ETag", `"`+doc.Checksum+`"`)
	writeJSON(w, http.StatusOK, doc)
}

// PatchDocument handles PATCH /api/documents/*.
//
//	@Summary		Update one metadata field with optimistic concurrency
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			path		path	string				true	"Document path"
//	@Param			If-Match	header	string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body	PatchFieldRequest	true	"Field and value"
//	@Success		200		{object}	DocumentDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{path} [patch]
func (h *Handler) PatchDocument(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req PatchFieldRequest
	if !decodeBody(w, r, &req) {
		return
	}

	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	doc, err := h.svc.PatchField(r.Context(), path, req.Key, req.Value, ifMatch)
	if err != nil {
		writeError(w, "patch document", err)
		return
	}
	w.Header().Set("ETag", `"`+doc.Checksum+`"`)
	writeJSON(w, http.StatusOK, doc)
}

// ListHabits handles GET /api/habits.
//
//	@Summary		Habit states and ledgers
//	@Tags			habits
//	@Produce		json
//	@Success		200	{object}	map[string][]habits.Summary
//	@Security		BearerAuth
//	@Router			/habits [get]
func (h *Handler) ListHabits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"habits": h.svc.ListHabits(r.Context()),
	})
}

// SetHabitStatus handles POST /api/habits/status/*.
//
//	@Summary		Mark a habit complete or not
//	@Tags			habits
//	@Accept			json
//	@Produce		json
//	@Param			path	path		string				true	"Habit path"
//	@Param			body	body		HabitStatusRequest	true	"New state"
//	@Success		200		{object}	habits.Summary
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/habits/status/{path} [post]
func (h *Handler) SetHabitStatus(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	var req HabitStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	sum, err := h.svc.SetHabitStatus(r.Context(), path, req.Completed)
	if err != nil {
		writeError(w, "set habit status", err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// ReferenceOptions handles GET /api/references/options.
//
//	@Summary		Documents a horizon's reference list may point at
//	@Tags			references
//	@Produce		json
//	@Param			horizon	query		string	true	"Horizon"	Enums(references, projects, areas, goals, vision, purpose)
//	@Success		200		{object}	ReferenceOptionsResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/references/options [get]
func (h *Handler) ReferenceOptions(w http.ResponseWriter, r *http.Request) {
	horizon := models.Horizon(r.URL.Query().Get("horizon"))
	if !validHorizon(horizon) {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'horizon' is invalid"))
		return
	}
	opts, err := h.svc.ReferenceOptions(r.Context(), horizon)
	if err != nil {
		writeError(w, "reference options", err)
		return
	}
	writeJSON(w, http.StatusOK, ReferenceOptionsResponse{Horizon: string(horizon), Options: opts})
}

func validHorizon(h models.Horizon) bool {
	for _, known := range models.Horizons {
		if h == known {
			return true
		}
	}
	return false
}

// Backlinks handles GET /api/references/backlinks/*.
//
//	@Summary		Documents that reference the given path
//	@Tags			references
//	@Produce		json
//	@Param			path	path		string	true	"Target path"
//	@Success		200		{object}	map[string]any
//	@Security		BearerAuth
//	@Router			/references/backlinks/{path} [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	path := docPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	bl, err := h.svc.Backlinks(r.Context(), path)
	if err != nil {
		writeError(w, "backlinks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"target":    path,
		"backlinks": bl,
	})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across documents
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	out := make([]SearchResult, len(results))
	for i, res := range results {
		out[i] = SearchResult{Path: res.Path, Title: res.Title, Snippet: res.Snippet}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: out})
}
