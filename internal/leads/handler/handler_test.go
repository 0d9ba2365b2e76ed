package handler

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"leadgen_backend/internal/leads/domain"
	"leadgen_backend/internal/leads/ports"
	"leadgen_backend/internal/leads/service"
	"leadgen_backend/internal/leads/transport"
	"leadgen_backend/platform/apperr"
	"leadgen_backend/platform/httpkit"
	"leadgen_backend/platform/logger"
	"leadgen_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type stubCache struct {
	leads []domain.Lead
}

func (s stubCache) SearchCache(_ context.Context, _ string, _ *domain.ExclusionSet, limit int) ([]domain.Lead, error) {
	if len(s.leads) > limit {
		return s.leads[:limit], nil
	}
	return s.leads, nil
}

type stubLedger struct {
	balance   int64
	settleErr error
}

func (s *stubLedger) DeliveredLeadIDs(context.Context, uuid.UUID, int) ([]string, error) {
	return nil, nil
}

func (s *stubLedger) Settle(_ context.Context, _, _ uuid.UUID, lines []ports.DeliveryLine) (ports.Settlement, error) {
	if s.settleErr != nil {
		return ports.Settlement{}, s.settleErr
	}
	out := ports.Settlement{}
	for _, l := range lines {
		out.Created = append(out.Created, l.LeadID)
		out.EmailsCharged += l.Emails
	}
	s.balance -= int64(out.EmailsCharged)
	out.CreditsRemaining = s.balance
	return out, nil
}

func cachedLeads() []domain.Lead {
	return []domain.Lead{
		{ID: "1", Username: "one", Emails: []string{"a@one.com"}},
		{ID: "2", Username: "two", Emails: []string{"a@two.com", "b@two.com"}},
		{ID: "3", Username: "three", Emails: []string{"a@three.com"}},
		{ID: "4", Username: "four", Emails: []string{"a@four.com"}},
		{ID: "5", Username: "five", Emails: []string{"a@five.com"}},
	}
}

func newEngine(t *testing.T, ledger *stubLedger, userID uuid.UUID) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := service.New(stubCache{leads: cachedLeads()}, ledger, nil, service.Limits{}, logger.NewWithWriter("test", io.Discard))
	h := New(svc, validator.New(), 3)

	engine := gin.New()
	group := engine.Group("/api")
	if userID != uuid.Nil {
		group.Use(func(c *gin.Context) {
			c.Set(httpkit.ContextUserIDKey, userID)
			c.Next()
		})
	}
	h.RegisterRoutes(group)
	return engine
}

func postJSON(engine *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestSearchUsesDefaultLimit(t *testing.T) {
	engine := newEngine(t, &stubLedger{balance: 100}, uuid.New())

	rec := postJSON(engine, "/api/search", `{"q":"shop"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body transport.SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(body.Results))
	}
	if body.Source.Cache != 3 || body.Source.VPS != 0 {
		t.Fatalf("unexpected source %+v", body.Source)
	}
	if body.EmailsDelivered != 4 || !body.BillingComplete {
		t.Fatalf("unexpected billing fields %+v", body)
	}
	if body.CreditsRemaining == nil || *body.CreditsRemaining != 96 {
		t.Fatalf("unexpected credits remaining %v", body.CreditsRemaining)
	}
}

func TestSearchRejectsUnauthenticated(t *testing.T) {
	engine := newEngine(t, &stubLedger{balance: 100}, uuid.Nil)

	rec := postJSON(engine, "/api/search", `{"q":"shop","limit":3}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSearchRejectsInvalidInput(t *testing.T) {
	engine := newEngine(t, &stubLedger{balance: 100}, uuid.New())

	for _, body := range []string{`{"q":"   ","limit":3}`, `{"q":"shop","limit":0}`, `{"q":"shop","limit":-2}`, `not json`} {
		rec := postJSON(engine, "/api/search", body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, rec.Code)
		}
		var resp httpkit.ErrorResponse
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
		if resp.Error != apperr.CodeInvalidRequest {
			t.Fatalf("%s: unexpected code %q", body, resp.Error)
		}
	}
}

func TestSearchInsufficientCreditsReturnsRedactedResults(t *testing.T) {
	engine := newEngine(t, &stubLedger{settleErr: ports.ErrInsufficientCredits}, uuid.New())

	rec := postJSON(engine, "/api/search", `{"q":"shop","limit":2}`)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}

	var body transport.SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != apperr.CodeInsufficientCredits || body.BillingComplete {
		t.Fatalf("unexpected failure body %+v", body)
	}
	if len(body.Results) != 2 {
		t.Fatalf("expected matched leads in body, got %d", len(body.Results))
	}
	for _, l := range body.Results {
		if len(l.Emails) != 0 {
			t.Fatalf("expected redacted emails, got %v", l.Emails)
		}
	}
	if body.EmailsDelivered != 0 || body.CreditsRemaining != nil {
		t.Fatalf("nothing should be billed: %+v", body)
	}
}

func TestSearchLedgerErrorReturns500WithCode(t *testing.T) {
	engine := newEngine(t, &stubLedger{settleErr: io.ErrUnexpectedEOF}, uuid.New())

	rec := postJSON(engine, "/api/search", `{"q":"shop","limit":2}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body transport.SearchResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body.Error != apperr.CodeLedgerError {
		t.Fatalf("unexpected code %q", body.Error)
	}
	if strings.Contains(rec.Body.String(), "unexpected EOF") {
		t.Fatal("internal cause leaked to client")
	}
}

func TestExportCSV(t *testing.T) {
	engine := newEngine(t, &stubLedger{}, uuid.New())

	payload := `{"results":[{"ig_id":"9","username":"comma","biography":"a, \"b\"","followers":12,"category":"Art","emails":["x@y.com","z@y.com"]}]}`
	rec := postJSON(engine, "/api/export-csv", payload)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="leads.csv"` {
		t.Fatalf("unexpected disposition %q", cd)
	}

	records, err := csv.NewReader(bytes.NewReader(rec.Body.Bytes())).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[1][2] != `a, "b"` || records[1][5] != "x@y.com; z@y.com" {
		t.Fatalf("unexpected row %v", records[1])
	}
}

func TestExportCSVRequiresResults(t *testing.T) {
	engine := newEngine(t, &stubLedger{}, uuid.New())

	rec := postJSON(engine, "/api/export-csv", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRegisterRoutesLeavesCallerMiddlewareUntouched(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := service.New(stubCache{}, &stubLedger{}, nil, service.Limits{}, logger.NewWithWriter("test", io.Discard))

	mw := make([]gin.HandlerFunc, 1, 2)
	mw[0] = func(c *gin.Context) { c.Next() }
	New(svc, validator.New(), 3).RegisterRoutes(gin.New().Group("/api"), mw...)

	if spare := mw[:2][1]; spare != nil {
		t.Fatal("search route was written into the caller's middleware slice")
	}
}
