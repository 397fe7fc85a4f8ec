package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"fuelsite-cloud/internal/audit"
	"fuelsite-cloud/internal/cashbox/application"
	cashbox "fuelsite-cloud/internal/cashbox/domain"
	"fuelsite-cloud/internal/platform/logging"
)

const basePath = "/api/v1/sessions"

// Handler serves the cash-box session API under /api/v1/sessions.
type Handler struct {
	service     *application.LifecycleService
	auditLogger audit.Logger
	logger      logrus.FieldLogger
	validate    *validator.Validate
}

// NewHandler constructs a handler. auditLogger may be nil.
func NewHandler(service *application.LifecycleService, auditLogger audit.Logger, logger logrus.FieldLogger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("session handler: nil service")
	}
	return &Handler{
		service:     service,
		auditLogger: auditLogger,
		logger:      logging.OrDefault(logger),
		validate:    newValidator(),
	}, nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type openRequest struct {
	OperatingDay  string           `json:"operating_day" validate:"required,datetime=2006-01-02"`
	ShiftLabel    string           `json:"shift_label" validate:"max=64"`
	OpeningAmount *decimal.Decimal `json:"opening_amount" validate:"required"`
	OperatorID    string           `json:"operator_id" validate:"required,max=64"`
	OperatorName  string           `json:"operator_name" validate:"max=128"`
}

type closeRequest struct {
	SessionID     string           `json:"session_id" validate:"required,max=64"`
	ClosingAmount *decimal.Decimal `json:"closing_amount" validate:"required"`
	SalesAmount   *decimal.Decimal `json:"sales_amount"`
	Notes         string           `json:"notes" validate:"max=1024"`
	OperatorID    string           `json:"operator_id" validate:"required,max=64"`
	OperatorName  string           `json:"operator_name" validate:"max=128"`
}

// ServeHTTP routes session requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == basePath+"/open" && r.Method == http.MethodPost:
		h.handleOpen(w, r)
		return
	case path == basePath+"/close" && r.Method == http.MethodPost:
		h.handleClose(w, r)
		return
	case path == basePath+"/status" && r.Method == http.MethodGet:
		h.handleStatus(w, r)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *Handler) handleOpen(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidation(w, err)
		return
	}
	day, err := cashbox.ParseOperatingDay(req.OperatingDay)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	session, err := h.service.Open(r.Context(), application.OpenCommand{
		OperatingDay:  day,
		ShiftLabel:    req.ShiftLabel,
		OpeningAmount: *req.OpeningAmount,
		Operator:      cashbox.Operator{ID: req.OperatorID, Name: req.OperatorName},
	})
	if err != nil && session == nil {
		respondServiceError(w, err)
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("session_id", session.ID).Warn("session opened but event publish failed")
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(session))
	h.logAudit(r, session, "session.open", req.OperatorID, req.OperatorName, map[string]any{
		"shift_label":    session.ShiftLabel,
		"opening_amount": session.OpeningAmount.StringFixed(2),
	})
}

func (h *Handler) handleClose(w http.ResponseWriter, r *http.Request) {
	var req closeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondValidation(w, err)
		return
	}

	session, closed, err := h.service.Close(r.Context(), application.CloseCommand{
		SessionID:     req.SessionID,
		ClosingAmount: *req.ClosingAmount,
		SalesAmount:   req.SalesAmount,
		Notes:         req.Notes,
		Operator:      cashbox.Operator{ID: req.OperatorID, Name: req.OperatorName},
	})
	if err != nil && session == nil {
		respondServiceError(w, err)
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("session_id", session.ID).Warn("session closed but event publish failed")
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
	if !closed {
		h.logger.WithFields(logrus.Fields{
			"session_id":  session.ID,
			"operator_id": req.OperatorID,
		}).Info("close ignored, session already closed")
		return
	}
	meta := map[string]any{"closing_amount": req.ClosingAmount.StringFixed(2)}
	if req.SalesAmount != nil {
		meta["sales_amount"] = req.SalesAmount.StringFixed(2)
	}
	h.logAudit(r, session, "session.close", req.OperatorID, req.OperatorName, meta)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	day, err := cashbox.ParseOperatingDay(r.URL.Query().Get("operating_day"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	status, err := h.service.OperatingDayStatus(r.Context(), day)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	resp := statusResponse{
		OperatingDay: cashbox.FormatDay(status.OperatingDay),
		Status:       status.Status,
	}
	if status.Session != nil {
		session := toSessionResponse(status.Session)
		resp.Session = &session
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) logAudit(r *http.Request, session *cashbox.Session, action, actor, actorName string, meta map[string]any) {
	if h.auditLogger == nil || session == nil {
		return
	}
	payload, _ := json.Marshal(meta)
	err := h.auditLogger.Log(r.Context(), audit.Entry{
		Actor:        actor,
		ActorName:    actorName,
		Action:       action,
		ResourceType: audit.ResourceSession,
		ResourceID:   session.ID,
		OperatingDay: cashbox.FormatDay(session.OperatingDay),
		Metadata:     payload,
		IP:           audit.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		h.logger.WithError(err).WithField("action", action).Warn("audit log failed")
	}
}

type sessionResponse struct {
	ID            string     `json:"id"`
	OperatingDay  string     `json:"operating_day"`
	ShiftLabel    string     `json:"shift_label"`
	OpenedAt      time.Time  `json:"opened_at"`
	OpenedBy      string     `json:"opened_by"`
	OpenedByName  string     `json:"opened_by_name,omitempty"`
	OpeningAmount string     `json:"opening_amount"`
	IsClosed      bool       `json:"is_closed"`
	ClosedAt      *time.Time `json:"closed_at"`
	ClosedBy      *string    `json:"closed_by"`
	ClosedByName  string     `json:"closed_by_name,omitempty"`
	ClosingAmount *string    `json:"closing_amount"`
	SalesAmount   *string    `json:"sales_amount"`
	Notes         string     `json:"notes,omitempty"`
}

type statusResponse struct {
	OperatingDay string           `json:"operating_day"`
	Status       string           `json:"status"`
	Session      *sessionResponse `json:"session"`
}

func toSessionResponse(s *cashbox.Session) sessionResponse {
	resp := sessionResponse{
		ID:            s.ID,
		OperatingDay:  cashbox.FormatDay(s.OperatingDay),
		ShiftLabel:    s.ShiftLabel,
		OpenedAt:      s.OpenedAt,
		OpenedBy:      s.OpenedBy.ID,
		OpenedByName:  s.OpenedBy.Name,
		OpeningAmount: s.OpeningAmount.StringFixed(2),
		IsClosed:      s.IsClosed,
		ClosedAt:      s.ClosedAt,
		ClosingAmount: formatAmount(s.ClosingAmount),
		SalesAmount:   formatAmount(s.SalesAmount),
		Notes:         s.Notes,
	}
	if s.ClosedBy != nil {
		closedBy := s.ClosedBy.ID
		resp.ClosedBy = &closedBy
		resp.ClosedByName = s.ClosedBy.Name
	}
	return resp
}

func formatAmount(value *decimal.Decimal) *string {
	if value == nil {
		return nil
	}
	formatted := value.StringFixed(2)
	return &formatted
}

func respondValidation(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	writeError(w, http.StatusBadRequest, "validation failed", fields)
}

func respondServiceError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var conflict *cashbox.OpenSessionConflictError
	var invalid *cashbox.ValidationError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":           conflict.Error(),
			"open_session_id": conflict.SessionID,
			"operating_day":   cashbox.FormatDay(conflict.OperatingDay),
		})
	case errors.Is(err, cashbox.ErrSessionAlreadyOpen):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, err.Error(), map[string]string{invalid.Field: invalid.Reason})
	case errors.Is(err, cashbox.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func writeError(w http.ResponseWriter, status int, message string, fields map[string]string) {
	body := map[string]any{"error": message}
	if len(fields) > 0 {
		body["fields"] = fields
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
