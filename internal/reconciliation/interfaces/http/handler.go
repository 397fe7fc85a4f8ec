package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	cashbox "fuelsite-cloud/internal/cashbox/domain"
	"fuelsite-cloud/internal/platform/logging"
	reconciliation "fuelsite-cloud/internal/reconciliation/domain"
)

const basePath = "/api/v1/reconciliation"

// Reconciler builds a reconciliation report for an operating day.
type Reconciler interface {
	Reconcile(ctx context.Context, day time.Time, mode reconciliation.ResolveMode) (reconciliation.Report, error)
}

// Handler serves GET /api/v1/reconciliation.
type Handler struct {
	service Reconciler
	logger  logrus.FieldLogger
}

// NewHandler constructs a handler.
func NewHandler(service Reconciler, logger logrus.FieldLogger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("reconciliation handler: nil service")
	}
	return &Handler{service: service, logger: logging.OrDefault(logger)}, nil
}

// ServeHTTP handles reconciliation queries.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.TrimSuffix(r.URL.Path, "/") != basePath {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	day, err := cashbox.ParseOperatingDay(query.Get("operating_day"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	mode := reconciliation.ModeFinal
	if raw := query.Get("live"); raw != "" {
		live, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "live must be a boolean")
			return
		}
		if live {
			mode = reconciliation.ModeLive
		}
	}

	report, err := h.service.Reconcile(r.Context(), day, mode)
	if err != nil {
		if errors.Is(err, reconciliation.ErrWindowUnresolved) {
			writeError(w, http.StatusUnprocessableEntity, "window_unresolved")
			return
		}
		h.logger.WithError(err).WithField("operating_day", cashbox.FormatDay(day)).Error("reconciliation failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, ToReportResponse(report))
}

// ReportResponse is the JSON form of a reconciliation report.
type ReportResponse struct {
	Window     WindowResponse          `json:"window"`
	Live       bool                    `json:"live"`
	ByPump     map[string]PumpResponse `json:"by_pump"`
	GrandTotal TotalsResponse          `json:"grand_total"`
	Anomalies  []AnomalyResponse       `json:"anomalies"`
}

type WindowResponse struct {
	Open      time.Time  `json:"open"`
	Close     time.Time  `json:"close"`
	PrevClose *time.Time `json:"prev_close"`
}

type PumpResponse struct {
	PumpID   string         `json:"pump_id"`
	Rows     []RowResponse  `json:"rows"`
	Subtotal TotalsResponse `json:"subtotal"`
}

type RowResponse struct {
	NozzleID        string   `json:"nozzle_id"`
	NozzleLabel     string   `json:"nozzle_label"`
	ProductLabel    string   `json:"product_label"`
	OpeningVolume   *float64 `json:"opening_volume"`
	ClosingVolume   *float64 `json:"closing_volume"`
	DispensedVolume *float64 `json:"dispensed_volume"`
	UnitPrice       *string  `json:"unit_price"`
	Revenue         *string  `json:"revenue"`
}

type TotalsResponse struct {
	Volume  float64 `json:"volume"`
	Revenue string  `json:"revenue"`
}

type AnomalyResponse struct {
	NozzleID string `json:"nozzle_id"`
	Kind     string `json:"kind"`
	Detail   string `json:"detail,omitempty"`
}

// ToReportResponse converts a report to its wire form. Blank values stay null.
func ToReportResponse(report reconciliation.Report) ReportResponse {
	resp := ReportResponse{
		Window: WindowResponse{
			Open:      report.Window.Open,
			Close:     report.Window.Close,
			PrevClose: report.Window.PrevClose,
		},
		Live:       report.Window.Live,
		ByPump:     make(map[string]PumpResponse, len(report.ByPump)),
		GrandTotal: toTotals(report.GrandTotal),
		Anomalies:  make([]AnomalyResponse, 0, len(report.Anomalies)),
	}
	for label, group := range report.ByPump {
		pump := PumpResponse{
			PumpID:   group.PumpID,
			Rows:     make([]RowResponse, 0, len(group.Rows)),
			Subtotal: toTotals(group.Totals),
		}
		for _, row := range group.Rows {
			out := RowResponse{
				NozzleID:        row.NozzleID,
				NozzleLabel:     row.NozzleLabel,
				ProductLabel:    row.ProductLabel,
				OpeningVolume:   row.OpeningVolume,
				ClosingVolume:   row.ClosingVolume,
				DispensedVolume: row.DispensedVolume,
			}
			if row.UnitPrice != nil {
				price := row.UnitPrice.String()
				out.UnitPrice = &price
			}
			if row.Revenue != nil {
				revenue := row.Revenue.StringFixed(2)
				out.Revenue = &revenue
			}
			pump.Rows = append(pump.Rows, out)
		}
		resp.ByPump[label] = pump
	}
	for _, anomaly := range report.Anomalies {
		resp.Anomalies = append(resp.Anomalies, AnomalyResponse{
			NozzleID: anomaly.NozzleID,
			Kind:     anomaly.Kind,
			Detail:   anomaly.Detail,
		})
	}
	return resp
}

func toTotals(t reconciliation.Totals) TotalsResponse {
	return TotalsResponse{Volume: t.Volume, Revenue: t.Revenue.StringFixed(2)}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
