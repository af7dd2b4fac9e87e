package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
)

const maxBodyBytes = 1 << 20

type HTTPHandler struct {
	service  ports.LinkService
	sweeper  ports.Sweeper
	baseURL  string
	validate *validator.Validate
	logger   zerolog.Logger
}

func NewHTTPHandler(service ports.LinkService, sweeper ports.Sweeper, baseURL string, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		service:  service,
		sweeper:  sweeper,
		baseURL:  strings.TrimRight(baseURL, "/"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// CreateLinkRequest payload
type CreateLinkRequest struct {
	OriginalURL string     `json:"original_url" validate:"required,url,max=2048"`
	CustomAlias *string    `json:"custom_alias,omitempty" validate:"omitempty,min=3,max=50"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Project     *string    `json:"project,omitempty" validate:"omitempty,max=100"`
}

// UpdateLinkRequest payload. Omitted fields are left unchanged.
type UpdateLinkRequest struct {
	ShortCode   *string    `json:"short_code,omitempty" validate:"omitempty,min=3,max=50"`
	IsActive    *bool      `json:"is_active,omitempty"`
	OriginalURL *string    `json:"original_url,omitempty" validate:"omitempty,url,max=2048"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// LinkResponse is a link plus its public short URL.
type LinkResponse struct {
	*domain.Link
	ShortURL string `json:"short_url"`
}

// Create Link (authenticated)
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	h.create(w, r, &caller)
}

// CreatePublic creates an anonymous link.
func (h *HTTPHandler) CreatePublic(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, nil)
}

func (h *HTTPHandler) create(w http.ResponseWriter, r *http.Request, caller *domain.Caller) {
	var req CreateLinkRequest
	if !h.decode(w, r, &req) {
		return
	}

	link, err := h.service.CreateLink(r.Context(), caller, domain.CreateLinkInput{
		OriginalURL: req.OriginalURL,
		CustomAlias: req.CustomAlias,
		ExpiresAt:   req.ExpiresAt,
		Project:     req.Project,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.linkResponse(link))
}

// Redirect to original URL
func (h *HTTPHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	originalURL, err := h.service.Redirect(r.Context(), r.PathValue("short_code"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	http.Redirect(w, r, originalURL, http.StatusFound)
}

// Get Stats for a Link
func (h *HTTPHandler) Stats(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	link, err := h.service.GetStats(r.Context(), r.PathValue("short_code"), caller)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.linkResponse(link))
}

// Update Link
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	var req UpdateLinkRequest
	if !h.decode(w, r, &req) {
		return
	}

	link, err := h.service.UpdateLink(r.Context(), r.PathValue("short_code"), domain.LinkPatch{
		ShortCode:   req.ShortCode,
		IsActive:    req.IsActive,
		OriginalURL: req.OriginalURL,
		ExpiresAt:   req.ExpiresAt,
	}, caller)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.linkResponse(link))
}

// Delete Link
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	if err := h.service.DeleteLink(r.Context(), r.PathValue("short_code"), caller); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search answers 404 when nothing matches, which existing clients rely on.
func (h *HTTPHandler) Search(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	links, err := h.service.SearchLinks(r.Context(), r.URL.Query().Get("original_url"), caller)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(links) == 0 {
		writeJSONError(w, http.StatusNotFound, "no links match the given URL")
		return
	}
	writeJSON(w, http.StatusOK, h.linkResponses(links))
}

func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	links, err := h.service.ListLinks(r.Context(), caller)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.linkResponses(links))
}

// ProjectLinks lists the caller's links in one project.
func (h *HTTPHandler) ProjectLinks(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	links, err := h.service.ListProjectLinks(r.Context(), r.PathValue("project"), caller)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.linkResponses(links))
}

// Expired lists the caller's archived links.
func (h *HTTPHandler) Expired(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())

	expired, err := h.service.ListExpired(r.Context(), caller)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, expired)
}

// Sweep runs the archival sweep on demand. Superusers only.
func (h *HTTPHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	archived, err := h.sweeper.SweepExpired(r.Context())
	if err != nil && archived == 0 {
		h.writeError(w, err)
		return
	}
	if err != nil {
		h.logger.Warn().Err(err).Int("archived", archived).Msg("sweep finished with errors")
	}
	writeJSON(w, http.StatusOK, map[string]int{"archived": archived})
}

// Health reports whether storage is reachable.
func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("health check failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func (h *HTTPHandler) linkResponse(link *domain.Link) LinkResponse {
	return LinkResponse{Link: link, ShortURL: h.baseURL + "/open/" + link.ShortCode}
}

func (h *HTTPHandler) linkResponses(links []domain.Link) []LinkResponse {
	out := make([]LinkResponse, 0, len(links))
	for i := range links {
		out = append(out, h.linkResponse(&links[i]))
	}
	return out
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg("request failed")
		msg = "internal server error"
	} else if status == http.StatusServiceUnavailable {
		h.logger.Error().Err(err).Msg("request failed")
	}
	writeJSONError(w, status, msg)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAliasTaken), errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrQuotaExceeded):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrExhaustedRetries):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "url":
			msgs = append(msgs, field+" must be a valid URL")
		case "min", "max":
			msgs = append(msgs, field+" must be "+fe.Tag()+" "+fe.Param()+" characters")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
