package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"fuelsite-cloud/internal/audit"
	"fuelsite-cloud/internal/cashbox/application"
	"fuelsite-cloud/internal/cashbox/infrastructure/memory"
	"fuelsite-cloud/internal/platform/logging"
)

type recordingAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingAudit) Log(ctx context.Context, entry audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *recordingAudit) {
	t.Helper()
	service, err := application.NewLifecycleService(memory.NewSessionRepository())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	auditLog := &recordingAudit{}
	handler, err := NewHandler(service, auditLog, logging.Discard())
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler, auditLog
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body
}

const openBody = `{"operating_day":"2025-01-01","shift_label":"mañana","opening_amount":"150.5","operator_id":"op-1","operator_name":"Ana"}`

func TestOpenCloseFlow(t *testing.T) {
	handler, auditLog := newTestHandler(t)

	resp := do(t, handler, http.MethodPost, "/api/v1/sessions/open", openBody)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	opened := decode(t, resp)
	id, _ := opened["id"].(string)
	if id == "" || opened["opening_amount"] != "150.50" || opened["is_closed"] != false {
		t.Fatalf("unexpected open response %v", opened)
	}
	if opened["closing_amount"] != nil {
		t.Fatalf("closing amount should be null before close")
	}

	resp = do(t, handler, http.MethodPost, "/api/v1/sessions/open",
		`{"operating_day":"2025-01-01","shift_label":"tarde","opening_amount":"10","operator_id":"op-9"}`)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
	if conflict := decode(t, resp); conflict["open_session_id"] != id {
		t.Fatalf("conflict should name %s, got %v", id, conflict)
	}

	resp = do(t, handler, http.MethodGet, "/api/v1/sessions/status?operating_day=2025-01-01", "")
	if status := decode(t, resp); status["status"] != "abierta" {
		t.Fatalf("expected abierta, got %v", status)
	}

	closeBody := `{"session_id":"` + id + `","closing_amount":"900","sales_amount":"750.25","operator_id":"op-2"}`
	resp = do(t, handler, http.MethodPost, "/api/v1/sessions/close", closeBody)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	closed := decode(t, resp)
	if closed["is_closed"] != true || closed["closing_amount"] != "900.00" || closed["sales_amount"] != "750.25" {
		t.Fatalf("unexpected close response %v", closed)
	}

	resp = do(t, handler, http.MethodPost, "/api/v1/sessions/close",
		`{"session_id":"`+id+`","closing_amount":"1","operator_id":"op-7"}`)
	if resp.Code != http.StatusOK {
		t.Fatalf("repeated close should be tolerated, got %d", resp.Code)
	}
	if again := decode(t, resp); again["closing_amount"] != "900.00" {
		t.Fatalf("repeated close changed the amount: %v", again)
	}

	resp = do(t, handler, http.MethodGet, "/api/v1/sessions/status?operating_day=2025-01-01", "")
	status := decode(t, resp)
	session, _ := status["session"].(map[string]any)
	if status["status"] != "cerrada" || session["id"] != id {
		t.Fatalf("expected cerrada with %s, got %v", id, status)
	}

	if len(auditLog.entries) != 2 || auditLog.entries[0].Action != "session.open" || auditLog.entries[1].Action != "session.close" {
		t.Fatalf("expected open and one close in the audit trail, got %+v", auditLog.entries)
	}
	if auditLog.entries[0].Actor != "op-1" || auditLog.entries[0].ResourceID != id {
		t.Fatalf("unexpected audit entry %+v", auditLog.entries[0])
	}
	if auditLog.entries[1].Actor != "op-2" || string(auditLog.entries[1].Metadata) != `{"closing_amount":"900.00","sales_amount":"750.25"}` {
		t.Fatalf("close entry should carry the effective close, got %+v", auditLog.entries[1])
	}
}

func TestOpen_ValidationErrors(t *testing.T) {
	handler, _ := newTestHandler(t)
	cases := []struct {
		name  string
		body  string
		field string
	}{
		{name: "missing amount", body: `{"operating_day":"2025-01-01","operator_id":"op-1"}`, field: "opening_amount"},
		{name: "bad day", body: `{"operating_day":"01-01-2025","opening_amount":"1","operator_id":"op-1"}`, field: "operating_day"},
		{name: "missing operator", body: `{"operating_day":"2025-01-01","opening_amount":"1"}`, field: "operator_id"},
		{name: "negative amount", body: `{"operating_day":"2025-01-01","opening_amount":"-1","operator_id":"op-1"}`, field: "opening_amount"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, handler, http.MethodPost, "/api/v1/sessions/open", tc.body)
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", resp.Code, resp.Body.String())
			}
			body := decode(t, resp)
			fields, _ := body["fields"].(map[string]any)
			if _, ok := fields[tc.field]; !ok {
				t.Fatalf("expected field %s in %v", tc.field, body)
			}
		})
	}

	resp := do(t, handler, http.MethodPost, "/api/v1/sessions/open", `{not json`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", resp.Code)
	}
}

func TestClose_NotFound(t *testing.T) {
	handler, _ := newTestHandler(t)
	resp := do(t, handler, http.MethodPost, "/api/v1/sessions/close",
		`{"session_id":"missing","closing_amount":"1","operator_id":"op-2"}`)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestRouting(t *testing.T) {
	handler, _ := newTestHandler(t)
	if resp := do(t, handler, http.MethodGet, "/api/v1/sessions/open", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for GET open, got %d", resp.Code)
	}
	if resp := do(t, handler, http.MethodGet, "/api/v1/sessions/status", ""); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without operating_day, got %d", resp.Code)
	}
}
