package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dom/product-console/internal/domain"
	"github.com/dom/product-console/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuditHandler struct {
	auditService *service.AuditService
	lg           *zap.SugaredLogger
}

func NewAuditHandler(auditService *service.AuditService, lg *zap.SugaredLogger) *AuditHandler {
	return &AuditHandler{auditService: auditService, lg: lg}
}

// AuditListQuery holds the raw query parameters of GET /api/audit.
type AuditListQuery struct {
	Page       int    `json:"page" validate:"gte=1"`
	Limit      int    `json:"limit" validate:"gte=1,lte=100"`
	UserID     string `json:"userId" validate:"omitempty,uuid"`
	Action     string `json:"action" validate:"omitempty,oneof=CREATE UPDATE DELETE LOGIN REGISTER"`
	EntityType string `json:"entityType" validate:"omitempty,oneof=USER PRODUCT"`
	DateFrom   string `json:"dateFrom"`
	DateTo     string `json:"dateTo"`
}

type AuditListResponse struct {
	AuditLogs  []*domain.AuditEntry `json:"auditLogs"`
	Pagination service.Pagination   `json:"pagination"`
}

type AuditEntryResponse struct {
	AuditLog *domain.AuditEntry `json:"auditLog"`
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	query, details := parseAuditQuery(r.URL.Query())
	if details != nil {
		h.lg.Warnw("list audit: validation failed", "details", details)
		writeValidationError(w, details)
		return
	}

	page, err := h.auditService.List(r.Context(), query)
	if err != nil {
		h.lg.Errorw("list audit failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, AuditListResponse{AuditLogs: page.Entries, Pagination: page.Pagination})
}

func (h *AuditHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		writeValidationError(w, []ValidationError{{Field: "userId", Message: "User id must be a valid id"}})
		return
	}
	query, details := parseAuditQuery(r.URL.Query())
	if details != nil {
		writeValidationError(w, details)
		return
	}

	page, err := h.auditService.ListByUser(r.Context(), userID, query.Page, query.Limit)
	if err != nil {
		h.lg.Errorw("list user audit failed", "userId", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, AuditListResponse{AuditLogs: page.Entries, Pagination: page.Pagination})
}

func (h *AuditHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Audit log not found")
		return
	}

	entry, err := h.auditService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrAuditEntryNotFound) {
			h.lg.Warnw("get audit: not found", "id", id)
			writeError(w, http.StatusNotFound, "Audit log not found")
			return
		}
		h.lg.Errorw("get audit failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, AuditEntryResponse{AuditLog: entry})
}

func (h *AuditHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.auditService.Stats(r.Context())
	if err != nil {
		h.lg.Errorw("audit stats failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

const dateOnly = "2006-01-02"

func parseAuditQuery(values url.Values) (service.AuditQuery, []ValidationError) {
	raw := AuditListQuery{
		Page:       1,
		Limit:      service.DefaultAuditPageSize,
		UserID:     values.Get("userId"),
		Action:     values.Get("action"),
		EntityType: values.Get("entityType"),
		DateFrom:   values.Get("dateFrom"),
		DateTo:     values.Get("dateTo"),
	}

	var details []ValidationError
	if v := values.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			details = append(details, ValidationError{Field: "page", Message: "Page must be a number"})
		}
		raw.Page = n
	}
	if v := values.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			details = append(details, ValidationError{Field: "limit", Message: "Limit must be a number"})
		}
		raw.Limit = n
	}
	if details != nil {
		return service.AuditQuery{}, details
	}
	details = ValidateStruct(raw)

	query := service.AuditQuery{
		Page:       raw.Page,
		Limit:      raw.Limit,
		Action:     domain.AuditAction(raw.Action),
		EntityType: domain.EntityType(raw.EntityType),
	}
	if raw.UserID != "" {
		if id, err := uuid.Parse(raw.UserID); err == nil {
			query.UserID = &id
		}
	}
	if raw.DateFrom != "" {
		t, ok := parseDate(raw.DateFrom, false)
		if !ok {
			details = append(details, ValidationError{Field: "dateFrom", Message: "Date from must be a date (YYYY-MM-DD) or RFC 3339 timestamp"})
		}
		query.DateFrom = &t
	}
	if raw.DateTo != "" {
		t, ok := parseDate(raw.DateTo, true)
		if !ok {
			details = append(details, ValidationError{Field: "dateTo", Message: "Date to must be a date (YYYY-MM-DD) or RFC 3339 timestamp"})
		}
		query.DateTo = &t
	}
	if details != nil {
		return service.AuditQuery{}, details
	}
	return query, nil
}

// parseDate accepts RFC 3339 or a bare date. A bare date used as an upper
// bound covers the whole day.
func parseDate(s string, endOfDay bool) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	t, err := time.Parse(dateOnly, s)
	if err != nil {
		return time.Time{}, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, true
}
