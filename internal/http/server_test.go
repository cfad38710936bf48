package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"bilant/internal/backup"
	"bilant/internal/compare"
	"bilant/internal/core"
	"bilant/internal/lock"
	"bilant/internal/seed"
	"bilant/internal/services"
	"bilant/internal/storage"
)

type memorySink struct {
	mu    sync.Mutex
	files []string
}

func (m *memorySink) Name() string { return "memory" }

func (m *memorySink) Put(_ context.Context, filename string, _ []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files = append(m.files, filename)
	return nil
}

type noopStopper struct{}

func (noopStopper) Stop() bool { return true }

func noTimer(time.Duration, func()) lock.Stopper { return noopStopper{} }

type testServer struct {
	srv  *Server
	sink *memorySink
}

func newTestServer(t *testing.T, password string) *testServer {
	t.Helper()
	defaults, err := seed.Default()
	if err != nil {
		t.Fatalf("seed.Default() error = %v", err)
	}
	clock := func() time.Time { return time.Date(2025, 8, 10, 9, 0, 0, 0, time.UTC) }
	sink := &memorySink{}
	ledger := services.NewLedger(context.Background(), storage.NewMemoryStore(), defaults, services.Options{
		Clock:     clock,
		Sinks:     []backup.Sink{sink},
		AfterFunc: func(_ time.Duration, fn func()) { fn() },
	})

	var hash []byte
	if password != "" {
		hash, err = lock.HashPassword(password)
		if err != nil {
			t.Fatalf("HashPassword() error = %v", err)
		}
	}
	idle := lock.New(hash, lock.WithAfterFunc(noTimer))

	srv := NewServer(":0", ledger, idle, nil, Options{})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testServer{srv: srv, sink: sink}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "127.0.0.1:5000"
	rec := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return v
}

type rowsResponse struct {
	Dataset string                     `json:"dataset"`
	Date    string                     `json:"date"`
	Rows    []map[string]any           `json:"rows"`
	Totals  map[string]decimal.Decimal `json:"totals"`
	CanUndo bool                       `json:"canUndo"`
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("GET /healthz = %d %q, want 200 ok", rec.Code, rec.Body.String())
	}

	rec = ts.do(t, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /readyz status = %d, want 200", rec.Code)
	}
	ready := decode[map[string]any](t, rec)
	if ready["date"] != "2025-08-10" || ready["lock"] != "unlocked" {
		t.Errorf("GET /readyz = %v", ready)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response is missing X-Request-ID")
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestDateEndpoints(t *testing.T) {
	ts := newTestServer(t, "")

	got := decode[dateView](t, ts.do(t, http.MethodGet, "/api/date", nil))
	want := dateView{Date: "2025-08-10", Today: "2025-08-10", IsToday: true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GET /api/date mismatch (-want +got):\n%s", diff)
	}

	rec := ts.do(t, http.MethodPut, "/api/date", dayBody{Date: "2025-07-01"})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT /api/date status = %d: %s", rec.Code, rec.Body)
	}
	got = decode[dateView](t, rec)
	if got.Date != "2025-07-01" || got.IsToday {
		t.Errorf("PUT /api/date = %+v, want 2025-07-01 not today", got)
	}

	// The past day was backfilled from the nearest snapshot.
	rows := decode[rowsResponse](t, ts.do(t, http.MethodGet, "/api/datasets/cash/rows", nil))
	if rows.Date != "2025-07-01" || len(rows.Rows) != 7 {
		t.Errorf("rows after date change = %s with %d rows, want 2025-07-01 with 7", rows.Date, len(rows.Rows))
	}

	tests := []struct {
		name string
		body any
		want int
	}{
		{name: "malformed date", body: dayBody{Date: "2025-13-01"}, want: http.StatusBadRequest},
		{name: "not json", body: "{date", want: http.StatusBadRequest},
		{name: "unknown field", body: `{"date":"2025-08-01","tz":"UTC"}`, want: http.StatusBadRequest},
		{name: "empty body", body: nil, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPut, "/api/date", tt.body)
			if rec.Code != tt.want {
				t.Errorf("PUT /api/date status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestListDatasets(t *testing.T) {
	ts := newTestServer(t, "")
	views := decode[[]datasetView](t, ts.do(t, http.MethodGet, "/api/datasets", nil))

	var ids []core.DatasetID
	for _, v := range views {
		ids = append(ids, v.ID)
	}
	if diff := cmp.Diff(core.DatasetIDs, ids); diff != "" {
		t.Errorf("dataset ids mismatch (-want +got):\n%s", diff)
	}
	for _, v := range views {
		if v.ID == core.Portfolio && (len(v.Computed) != 2 || v.TotalColumn != "currentValue") {
			t.Errorf("portfolio view = %+v, want two computed columns totalled on currentValue", v)
		}
	}
}

func TestRowEditing(t *testing.T) {
	ts := newTestServer(t, "")

	rows := decode[rowsResponse](t, ts.do(t, http.MethodGet, "/api/datasets/cash/rows", nil))
	if len(rows.Rows) != 7 {
		t.Fatalf("cash rows = %d, want 7", len(rows.Rows))
	}
	if total := rows.Totals[core.ColBalance]; !total.Equal(decimal.NewFromInt(52245)) {
		t.Errorf("cash total = %s, want 52245", total)
	}

	rec := ts.do(t, http.MethodPost, "/api/datasets/cash/rows/add", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("add status = %d: %s", rec.Code, rec.Body)
	}
	if got := len(decode[rowsResponse](t, rec).Rows); got != 8 {
		t.Errorf("rows after add = %d, want 8", got)
	}

	rec = ts.do(t, http.MethodPost, "/api/datasets/cash/rows/update", map[string]any{"index": 7, "field": "balance", "value": 100})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body)
	}
	if total := decode[rowsResponse](t, rec).Totals[core.ColBalance]; !total.Equal(decimal.NewFromInt(52345)) {
		t.Errorf("cash total after update = %s, want 52345", total)
	}

	rec = ts.do(t, http.MethodPost, "/api/datasets/cash/rows/delete", map[string]int{"index": 0})
	deleted := decode[rowsResponse](t, rec)
	if len(deleted.Rows) != 7 || !deleted.CanUndo {
		t.Errorf("after delete rows = %d canUndo = %v, want 7 true", len(deleted.Rows), deleted.CanUndo)
	}

	restored := decode[rowsResponse](t, ts.do(t, http.MethodPost, "/api/datasets/cash/rows/undo", nil))
	if len(restored.Rows) != 8 || restored.Rows[0][core.ColAccount] != "Personal checking" {
		t.Errorf("after undo rows = %d first = %v, want 8 with Personal checking first", len(restored.Rows), restored.Rows[0])
	}

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
		code   string
	}{
		{"nothing to undo", http.MethodPost, "/api/datasets/cash/rows/undo", nil, http.StatusConflict, "nothing_to_undo"},
		{"unknown dataset", http.MethodGet, "/api/datasets/stocks/rows", nil, http.StatusNotFound, "unknown_dataset"},
		{"index out of range", http.MethodPost, "/api/datasets/cash/rows/delete", map[string]int{"index": 99}, http.StatusBadRequest, "invalid_edit"},
		{"missing index", http.MethodPost, "/api/datasets/cash/rows/delete", map[string]any{}, http.StatusBadRequest, "bad_request"},
		{"unknown field", http.MethodPost, "/api/datasets/cash/rows/update", map[string]any{"index": 0, "field": "iban", "value": "x"}, http.StatusBadRequest, "invalid_edit"},
		{"bad date query", http.MethodGet, "/api/datasets/cash/rows?date=yesterday", nil, http.StatusBadRequest, "invalid_date"},
		{"unknown endpoint", http.MethodGet, "/api/nope", nil, http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("%s %s status = %d, want %d: %s", tt.method, tt.path, rec.Code, tt.want, rec.Body)
			}
			if got := decode[errorBody](t, rec).Code; got != tt.code {
				t.Errorf("error code = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestSetRowsAtPastDate(t *testing.T) {
	ts := newTestServer(t, "")
	body := map[string]any{"rows": []map[string]any{{"account": "Only", "balance": 10}}}

	rec := ts.do(t, http.MethodPut, "/api/datasets/cash/rows?date=2025-08-01", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT rows status = %d: %s", rec.Code, rec.Body)
	}
	got := decode[rowsResponse](t, rec)
	if got.Date != "2025-08-01" || len(got.Rows) != 1 || !got.Totals[core.ColBalance].Equal(decimal.NewFromInt(10)) {
		t.Errorf("PUT rows = %+v", got)
	}

	today := decode[rowsResponse](t, ts.do(t, http.MethodGet, "/api/datasets/cash/rows", nil))
	if len(today.Rows) != 7 {
		t.Errorf("today's rows = %d, want 7 untouched", len(today.Rows))
	}
}

func TestCompareEndpoints(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodPut, "/api/datasets/cash/compare", dayBody{Date: "2025-08-10"})
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT compare status = %d: %s", rec.Code, rec.Body)
	}
	got := decode[map[string]any](t, rec)
	if got["primaryDay"] != "2025-08-10" || got["compareDay"] != "2025-08-09" {
		t.Errorf("compare days = %v / %v, want 2025-08-10 / 2025-08-09", got["primaryDay"], got["compareDay"])
	}
	if got["delta"] != "0" {
		t.Errorf("delta = %v, want 0 for an unchanged backfilled day", got["delta"])
	}

	ts.do(t, http.MethodPost, "/api/datasets/cash/rows/update", map[string]any{"index": 0, "field": "balance", "value": 3358})
	got = decode[map[string]any](t, ts.do(t, http.MethodGet, "/api/datasets/cash/compare", nil))
	if got["delta"] != "1000" {
		t.Errorf("delta after edit = %v, want 1000", got["delta"])
	}
}

func TestBalanceAndMonthly(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodGet, "/api/balance/series?days=7", nil)
	series := decode[struct {
		End    string           `json:"end"`
		Points []map[string]any `json:"points"`
	}](t, rec)
	if series.End != "2025-08-10" || len(series.Points) != 7 || series.Points[0]["day"] != "2025-08-04" {
		t.Errorf("series = %+v", series)
	}
	if rec := ts.do(t, http.MethodGet, "/api/balance/series?days=0", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("days=0 status = %d, want 400", rec.Code)
	}

	sheet := decode[compare.Sheet](t, ts.do(t, http.MethodGet, "/api/balance", nil))
	if sheet.Day != "2025-08-10" || !sheet.Cash.Equal(decimal.NewFromInt(52245)) {
		t.Errorf("balance = %s cash %s, want 2025-08-10 cash 52245", sheet.Day, sheet.Cash)
	}
	if !sheet.Net.Equal(sheet.Assets.Sub(sheet.Debts)) {
		t.Errorf("net %s != assets %s - debts %s", sheet.Net, sheet.Assets, sheet.Debts)
	}

	rec = ts.do(t, http.MethodPost, "/api/monthly/reset-day", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset-day status = %d: %s", rec.Code, rec.Body)
	}
	monthly := decode[services.MonthlySummary](t, rec)
	if !monthly.Sources.PrimaryTotal.IsZero() {
		t.Errorf("sources after reset = %s, want 0", monthly.Sources.PrimaryTotal)
	}
}

func TestConfigAndProjection(t *testing.T) {
	ts := newTestServer(t, "")

	tax := decode[map[string]any](t, ts.do(t, http.MethodGet, "/api/tax", nil))
	if tax["roundedTotal"] != "23584" {
		t.Errorf("roundedTotal = %v, want 23584", tax["roundedTotal"])
	}

	cfg := decode[configView](t, ts.do(t, http.MethodGet, "/api/config", nil)).Config
	cfg.GrossIncome = -1
	rec := ts.do(t, http.MethodPut, "/api/config", cfg)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("PUT negative config status = %d, want 422", rec.Code)
	}

	cfg.GrossIncome = 0
	rec = ts.do(t, http.MethodPut, "/api/config", cfg)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT config status = %d: %s", rec.Code, rec.Body)
	}
	if total := decode[configView](t, rec).Tax.Total; !core.RoundUnits(total).Equal(decimal.NewFromInt(2430)) {
		t.Errorf("tax total = %s, want 2430", total)
	}

	rec = ts.do(t, http.MethodPut, "/api/projection/settings", map[string]int{"startYear": 2025, "startMonth": 13, "monthCount": 3})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("PUT invalid settings status = %d, want 422", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/api/projection.csv", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("projection.csv status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="Cashflow_Aug25_Aug26.csv"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if lines := strings.Count(rec.Body.String(), "\n"); lines < 14 {
		t.Errorf("projection.csv has %d lines, want header plus 13 months", lines)
	}

	rec = ts.do(t, http.MethodGet, "/api/projection.pdf", nil)
	if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Errorf("projection.pdf = %d, body starts %q", rec.Code, rec.Body.Bytes()[:min(8, rec.Body.Len())])
	}

	rec = ts.do(t, http.MethodPut, "/api/installments", `{"2025":[{"dueDate":"31/02/2025","amount":10}]}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("PUT invalid installments status = %d, want 422", rec.Code)
	}
}

func TestBackupEndpoints(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodPost, "/api/backup/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d: %s", rec.Code, rec.Body)
	}
	res := decode[backup.Result](t, rec)
	if !strings.HasPrefix(res.Filename, "bilant_backup_") || !cmp.Equal(res.Sinks, []string{"memory"}) {
		t.Errorf("export = %+v, want a bilant_backup_ file written to the memory sink", res)
	}
	if n := len(ts.sink.files); n == 0 || ts.sink.files[n-1] != res.Filename {
		t.Errorf("sink files = %v, want last %s", ts.sink.files, res.Filename)
	}

	rec = ts.do(t, http.MethodPost, "/api/backup/export?download=1", nil)
	bundle := rec.Body.Bytes()
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "bilant_backup_") {
		t.Errorf("download Content-Disposition = %q", rec.Header().Get("Content-Disposition"))
	}

	ts.do(t, http.MethodPost, "/api/datasets/cash/rows/add", nil)
	rec = ts.do(t, http.MethodPost, "/api/backup/import", bundle)
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d: %s", rec.Code, rec.Body)
	}
	rows := decode[rowsResponse](t, ts.do(t, http.MethodGet, "/api/datasets/cash/rows", nil))
	if len(rows.Rows) != 7 {
		t.Errorf("rows after import = %d, want the exported 7", len(rows.Rows))
	}

	rec = ts.do(t, http.MethodPost, "/api/backup/import", `{"version":1}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid import status = %d, want 422: %s", rec.Code, rec.Body)
	}

	rec = ts.do(t, http.MethodPost, "/api/sheets/push", nil)
	if rec.Code != http.StatusNotImplemented {
		t.Errorf("sheets push without spreadsheet status = %d, want 501", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/reset", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("reset status = %d: %s", rec.Code, rec.Body)
	}
}

func TestIdleLock(t *testing.T) {
	ts := newTestServer(t, "hunter2")

	state := decode[lockView](t, ts.do(t, http.MethodGet, "/api/lock", nil))
	if !state.Enabled || state.State != lock.Locked {
		t.Fatalf("initial lock = %+v, want enabled and locked", state)
	}

	mutations := []struct{ method, path string }{
		{http.MethodPut, "/api/date"},
		{http.MethodPost, "/api/datasets/cash/rows/add"},
		{http.MethodPut, "/api/config"},
		{http.MethodPost, "/api/backup/import"},
		{http.MethodPost, "/api/reset"},
	}
	for _, m := range mutations {
		if rec := ts.do(t, m.method, m.path, nil); rec.Code != http.StatusLocked {
			t.Errorf("%s %s while locked = %d, want 423", m.method, m.path, rec.Code)
		}
	}
	if rec := ts.do(t, http.MethodGet, "/api/datasets/cash/rows", nil); rec.Code != http.StatusOK {
		t.Errorf("read while locked = %d, want 200", rec.Code)
	}

	if rec := ts.do(t, http.MethodPost, "/api/lock/unlock", map[string]string{"password": "nope"}); rec.Code != http.StatusUnauthorized {
		t.Errorf("unlock with wrong password = %d, want 401", rec.Code)
	}
	rec := ts.do(t, http.MethodPost, "/api/lock/unlock", map[string]string{"password": "hunter2"})
	if rec.Code != http.StatusOK || decode[lockView](t, rec).State != lock.Unlocked {
		t.Fatalf("unlock = %d %s", rec.Code, rec.Body)
	}
	if rec := ts.do(t, http.MethodPost, "/api/datasets/cash/rows/add", nil); rec.Code != http.StatusOK {
		t.Errorf("add after unlock = %d, want 200", rec.Code)
	}

	ts.do(t, http.MethodPost, "/api/lock", nil)
	if rec := ts.do(t, http.MethodPost, "/api/datasets/cash/rows/add", nil); rec.Code != http.StatusLocked {
		t.Errorf("add after manual lock = %d, want 423", rec.Code)
	}
}
