package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fuelsite-cloud/internal/platform/logging"
	reconciliation "fuelsite-cloud/internal/reconciliation/domain"
)

type fakeReconciler struct {
	report reconciliation.Report
	err    error
	day    time.Time
	mode   reconciliation.ResolveMode
}

func (f *fakeReconciler) Reconcile(ctx context.Context, day time.Time, mode reconciliation.ResolveMode) (reconciliation.Report, error) {
	f.day = day
	f.mode = mode
	return f.report, f.err
}

func sampleReport() reconciliation.Report {
	volume := 40.0
	opening := 100.0
	closing := 140.0
	price := decimal.RequireFromString("1.25")
	revenue := decimal.RequireFromString("50")
	row := reconciliation.Row{
		NozzleID: "n-1", NozzleLabel: "M1", ProductLabel: "Regular",
		OpeningVolume: &opening, ClosingVolume: &closing, DispensedVolume: &volume,
		UnitPrice: &price, Revenue: &revenue,
	}
	blank := reconciliation.Row{NozzleID: "n-2", NozzleLabel: "M2", ProductLabel: "Diesel"}
	return reconciliation.Report{
		Window: reconciliation.Window{
			Open:  time.Date(2025, 1, 1, 23, 50, 0, 0, time.UTC),
			Close: time.Date(2025, 1, 2, 0, 10, 0, 0, time.UTC),
		},
		ByPump: map[string]reconciliation.PumpGroup{
			"Surtidor 1": {
				PumpID: "p-1", Label: "Surtidor 1",
				Rows:   []reconciliation.Row{row, blank},
				Totals: reconciliation.Totals{Volume: 40, Revenue: revenue},
			},
		},
		GrandTotal: reconciliation.Totals{Volume: 40, Revenue: revenue},
	}
}

func TestHandler_Report(t *testing.T) {
	fake := &fakeReconciler{report: sampleReport()}
	handler, err := NewHandler(fake, logging.Discard())
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation?operating_day=2025-01-01", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if fake.mode != reconciliation.ModeFinal || fake.day.Format("2006-01-02") != "2025-01-01" {
		t.Fatalf("unexpected call day=%s mode=%s", fake.day, fake.mode)
	}

	var body struct {
		ByPump map[string]struct {
			Rows []map[string]any `json:"rows"`
		} `json:"by_pump"`
		GrandTotal struct {
			Volume  float64 `json:"volume"`
			Revenue string  `json:"revenue"`
		} `json:"grand_total"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.GrandTotal.Volume != 40 || body.GrandTotal.Revenue != "50.00" {
		t.Fatalf("unexpected grand total %+v", body.GrandTotal)
	}
	rows := body.ByPump["Surtidor 1"].Rows
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	for _, key := range []string{"opening_volume", "closing_volume", "dispensed_volume", "unit_price", "revenue"} {
		value, ok := rows[1][key]
		if !ok || value != nil {
			t.Fatalf("blank row field %s should be null, got %v", key, value)
		}
	}
	if rows[0]["revenue"] != "50.00" {
		t.Fatalf("unexpected revenue %v", rows[0]["revenue"])
	}
}

func TestHandler_LiveFlag(t *testing.T) {
	fake := &fakeReconciler{report: sampleReport()}
	handler, _ := NewHandler(fake, logging.Discard())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation?operating_day=2025-01-01&live=true", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if fake.mode != reconciliation.ModeLive {
		t.Fatalf("expected live mode")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation?operating_day=2025-01-01&live=maybe", nil)
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestHandler_Errors(t *testing.T) {
	cases := []struct {
		name   string
		target string
		err    error
		status int
	}{
		{name: "bad day", target: "/api/v1/reconciliation?operating_day=01/01/2025", status: http.StatusBadRequest},
		{name: "missing day", target: "/api/v1/reconciliation", status: http.StatusBadRequest},
		{name: "unresolved", target: "/api/v1/reconciliation?operating_day=2025-01-01", err: reconciliation.ErrWindowUnresolved, status: http.StatusUnprocessableEntity},
		{name: "internal", target: "/api/v1/reconciliation?operating_day=2025-01-01", err: errors.New("db down"), status: http.StatusInternalServerError},
		{name: "unknown path", target: "/api/v1/reconciliation/extra", status: http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler, _ := NewHandler(&fakeReconciler{err: tc.err}, logging.Discard())
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			if resp.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.Code)
			}
		})
	}
}

func TestHandler_UnresolvedBody(t *testing.T) {
	handler, _ := NewHandler(&fakeReconciler{err: reconciliation.ErrWindowUnresolved}, logging.Discard())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reconciliation?operating_day=2025-01-01", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "window_unresolved" {
		t.Fatalf("unexpected body %v", body)
	}
}
