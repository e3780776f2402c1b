package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/cellwatch/internal/cell"
	"github.com/ziadkadry99/cellwatch/internal/db"
	"github.com/ziadkadry99/cellwatch/internal/report"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFormatter() report.Formatter {
	return report.Formatter{
		Recipient: "ops@example.com",
		Platform:  "fixture",
		Location:  time.UTC,
		Now:       func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func testSnapshot() cell.Snapshot {
	return cell.Snapshot{
		MCC: "310", MNC: "260", LAC: "100", CID: "500",
		SignalPercent: 75, RSSI: -71, NetworkType: "LTE",
		CarrierName: "Carrier1", CountryCode: "us",
	}
}

func testReport(id string) report.Report {
	r := testFormatter().Build(report.KindManual, testSnapshot(), nil, 0)
	if id != "" {
		r.ID = id
	}
	return r
}

// fakeChannel records every send.
type fakeChannel struct {
	name  string
	ready bool
	err   error
	calls int
}

func (f *fakeChannel) Name() string { return f.name }
func (f *fakeChannel) Ready() bool  { return f.ready }
func (f *fakeChannel) Send(ctx context.Context, r report.Report) error {
	f.calls++
	return f.err
}

// countingServer answers every POST with status and counts requests.
func countingServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestIsPlaceholder(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"service_your_id", true},
		{"template_your_id", true},
		{"your_user_id", true},
		{"your_api_key", true},
		{"https://formspree.io/f/your_form_id", true},
		{"https://api.your-smtp-service.com/send", true},
		{"https://api.emailjs.com/api/v1.0/email/send", false},
		{"service_k9x2", false},
		{"sk-live-123", false},
		{"https://formspree.io/f/xrgkqwpd", false},
		{"your_real_secret_9f8a7b", false},
		{"https://hooks.example.com/your_inbox", false},
		{"https://relay.example.com/hooks/notify-your-team", false},
		{"celltowertracker@yourdomain.com", false},
	}
	for _, tt := range tests {
		if got := IsPlaceholder(tt.value); got != tt.want {
			t.Errorf("IsPlaceholder(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestWebhookReady(t *testing.T) {
	tests := []struct {
		name string
		cfg  WebhookConfig
		want bool
	}{
		{"configured", WebhookConfig{Endpoint: "https://relay.example.com/send", Credential: "key-1"}, true},
		{"real endpoint mentioning your", WebhookConfig{
			Endpoint:   "https://relay.example.com/hooks/notify-your-team",
			Credential: "your_real_secret_9f8a7b",
		}, true},
		{"no endpoint", WebhookConfig{}, false},
		{"placeholder endpoint", WebhookConfig{Endpoint: "https://formspree.io/f/your_form_id"}, false},
		{"placeholder credential", WebhookConfig{Endpoint: "https://relay.example.com", Credential: "your_api_key"}, false},
		{"missing required credential", WebhookConfig{Endpoint: "https://relay.example.com", RequireCredential: true}, false},
		{"placeholder field", WebhookConfig{
			Endpoint: "https://api.emailjs.com/api/v1.0/email/send",
			Fields:   map[string]string{"service_id": "service_your_id"},
		}, false},
		{"empty field", WebhookConfig{
			Endpoint: "https://relay.example.com",
			Fields:   map[string]string{"template_id": ""},
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewWebhook(tt.cfg, nil).Ready(); got != tt.want {
				t.Errorf("Ready() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWebhookSendPayload(t *testing.T) {
	var (
		gotAuth    string
		gotType    string
		gotPayload map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotPayload)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(WebhookConfig{
		Name:       "relay",
		Endpoint:   srv.URL,
		Credential: "key-1",
		Fields:     map[string]string{"service_id": "service_k9x2", "subject": "overridden"},
	}, nil)

	r := testReport("r-1")
	if err := wh.Send(context.Background(), r); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotAuth != "Bearer key-1" {
		t.Errorf("Authorization = %q, want Bearer key-1", gotAuth)
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotType)
	}
	if gotPayload["to"] != "ops@example.com" {
		t.Errorf("to = %v, want ops@example.com", gotPayload["to"])
	}
	if gotPayload["subject"] != r.Subject {
		t.Errorf("subject = %v, want %q", gotPayload["subject"], r.Subject)
	}
	if gotPayload["service_id"] != "service_k9x2" {
		t.Errorf("service_id = %v, want service_k9x2", gotPayload["service_id"])
	}
	if gotPayload["event_type"] != "manual_report" {
		t.Errorf("event_type = %v, want manual_report", gotPayload["event_type"])
	}
	if html, _ := gotPayload["html"].(string); !strings.Contains(html, "<h1>") {
		t.Errorf("html missing heading: %q", html)
	}
}

func TestWebhookReusesConnection(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true,"message":"queued for delivery"}`))
	}))
	srv.Config.ConnState = func(_ net.Conn, st http.ConnState) {
		if st == http.StateNew {
			conns.Add(1)
		}
	}
	srv.Start()
	defer srv.Close()

	wh := NewWebhook(WebhookConfig{Name: "relay", Endpoint: srv.URL}, srv.Client())
	for i := 0; i < 3; i++ {
		if err := wh.Send(context.Background(), testReport("")); err != nil {
			t.Fatalf("Send #%d: %v", i+1, err)
		}
	}
	if got := conns.Load(); got != 1 {
		t.Errorf("connections opened = %d, want 1", got)
	}
}

func TestWebhookAcceptedStatuses(t *testing.T) {
	srv, _ := countingServer(t, http.StatusAccepted)

	strict := NewWebhook(WebhookConfig{Name: "strict", Endpoint: srv.URL}, nil)
	err := strict.Send(context.Background(), testReport(""))
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusAccepted {
		t.Fatalf("Send with default accept = %v, want StatusError 202", err)
	}

	lenient := NewWebhook(WebhookConfig{Name: "lenient", Endpoint: srv.URL, Accept: []int{200, 202}}, nil)
	if err := lenient.Send(context.Background(), testReport("")); err != nil {
		t.Errorf("Send with 202 accepted: %v", err)
	}
}

func TestDispatchOnlyThirdChannelConfigured(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK)

	channels := []Channel{
		NewWebhook(WebhookConfig{Name: "emailjs", Endpoint: srv.URL, Fields: map[string]string{"service_id": "service_your_id"}}, nil),
		NewWebhook(WebhookConfig{Name: "formspree", Endpoint: srv.URL + "/f/your_form_id"}, nil),
		NewWebhook(WebhookConfig{Name: "smtp_api", Endpoint: srv.URL, Credential: "live-key"}, nil),
	}
	d := NewDispatcher(testFormatter(), channels, WithLogger(quietLogger()))

	res, err := d.Dispatch(context.Background(), report.KindManual, testSnapshot(), nil, 0)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("network calls = %d, want 1", got)
	}
	if !res.Delivered || res.Channel != "smtp_api" {
		t.Errorf("result = %+v, want delivered via smtp_api", res)
	}
	if len(res.Attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(res.Attempts))
	}
	if !res.Attempts[0].Skipped || !res.Attempts[1].Skipped || res.Attempts[2].Skipped {
		t.Errorf("skip pattern = %v %v %v, want true true false",
			res.Attempts[0].Skipped, res.Attempts[1].Skipped, res.Attempts[2].Skipped)
	}
	if res.Calls() != 1 {
		t.Errorf("Calls() = %d, want 1", res.Calls())
	}
}

func TestDispatchStopsAtFirstSuccess(t *testing.T) {
	first := &fakeChannel{name: "a", ready: true, err: errors.New("boom")}
	second := &fakeChannel{name: "b", ready: true}
	third := &fakeChannel{name: "c", ready: true}
	d := NewDispatcher(testFormatter(), []Channel{first, second, third}, WithLogger(quietLogger()))

	res, err := d.Send(context.Background(), testReport(""))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.Channel != "b" {
		t.Errorf("Channel = %q, want b", res.Channel)
	}
	if first.calls != 1 || second.calls != 1 || third.calls != 0 {
		t.Errorf("calls = %d %d %d, want 1 1 0", first.calls, second.calls, third.calls)
	}
	if res.Attempts[0].Error != "boom" {
		t.Errorf("first attempt error = %q, want boom", res.Attempts[0].Error)
	}
}

func TestDispatchAllFail(t *testing.T) {
	srv, _ := countingServer(t, http.StatusInternalServerError)
	store := setupTestStore(t)

	channels := []Channel{
		&fakeChannel{name: "unready"},
		NewWebhook(WebhookConfig{Name: "broken", Endpoint: srv.URL}, nil),
	}
	d := NewDispatcher(testFormatter(), channels, WithOutbox(store), WithLogger(quietLogger()))

	res, err := d.Send(context.Background(), testReport("fail-1"))
	if !errors.Is(err, ErrDispatchFailed) {
		t.Fatalf("err = %v, want ErrDispatchFailed", err)
	}
	if res.Delivered {
		t.Error("expected Delivered = false")
	}
	if res.Attempts[1].StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", res.Attempts[1].StatusCode)
	}

	rec, err := store.GetByID(context.Background(), "fail-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if rec.Delivered {
		t.Error("outbox record marked delivered")
	}
	if !strings.Contains(rec.Body, "Cell ID (CID): 500") {
		t.Errorf("outbox body missing report content: %q", rec.Body)
	}
}

func TestDispatchNoChannels(t *testing.T) {
	d := NewDispatcher(testFormatter(), nil, WithLogger(quietLogger()))
	_, err := d.Send(context.Background(), testReport(""))
	if !errors.Is(err, ErrDispatchFailed) {
		t.Errorf("err = %v, want ErrDispatchFailed", err)
	}
}

func TestDispatchCancelledContext(t *testing.T) {
	ch := &fakeChannel{name: "a", ready: true}
	d := NewDispatcher(testFormatter(), []Channel{ch}, WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Send(ctx, testReport(""))
	if !errors.Is(err, ErrDispatchFailed) || !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want ErrDispatchFailed wrapping context.Canceled", err)
	}
	if ch.calls != 0 {
		t.Errorf("calls = %d, want 0", ch.calls)
	}
}

func TestResendDeliversPending(t *testing.T) {
	store := setupTestStore(t)
	ch := &fakeChannel{name: "relay", ready: true, err: errors.New("down")}
	d := NewDispatcher(testFormatter(), []Channel{ch}, WithOutbox(store), WithLogger(quietLogger()))
	ctx := context.Background()

	if _, err := d.Send(ctx, testReport("p-1")); !errors.Is(err, ErrDispatchFailed) {
		t.Fatalf("first Send err = %v, want ErrDispatchFailed", err)
	}

	ch.err = nil
	res, err := d.Resend(ctx, "p-1")
	if err != nil {
		t.Fatalf("Resend: %v", err)
	}
	if !res.Delivered {
		t.Error("expected resend to deliver")
	}

	rec, err := store.GetByID(ctx, "p-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !rec.Delivered || rec.Channel != "relay" {
		t.Errorf("record = delivered %v channel %q, want true relay", rec.Delivered, rec.Channel)
	}
	if len(rec.Attempts) != 2 {
		t.Errorf("attempts = %d, want 2", len(rec.Attempts))
	}

	pending, err := store.GetPending(ctx)
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
}

func TestResendNotFound(t *testing.T) {
	store := setupTestStore(t)
	d := NewDispatcher(testFormatter(), nil, WithOutbox(store), WithLogger(quietLogger()))

	_, err := d.Resend(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestStoreCreateAutoID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rec := Record{Kind: report.KindAlert, EventType: "cell_tower_change", Subject: "s", Body: "b"}
	id, err := store.Create(ctx, rec)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated ID")
	}

	got, err := store.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Kind != report.KindAlert {
		t.Errorf("Kind = %q, want alert", got.Kind)
	}
	if got.Attempts == nil || len(got.Attempts) != 0 {
		t.Errorf("Attempts = %v, want empty", got.Attempts)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestStoreListFilters(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []Record{
		{ID: "f-1", Kind: report.KindAlert, EventType: "cell_tower_change", Subject: "a", Body: "a", CreatedAt: base},
		{ID: "f-2", Kind: report.KindHeartbeat, EventType: "periodic_update", Subject: "h", Body: "h", CreatedAt: base.Add(time.Minute), Delivered: true},
		{ID: "f-3", Kind: report.KindManual, EventType: "manual_report", Subject: "m", Body: "m", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, rec := range records {
		if _, err := store.Create(ctx, rec); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	all, err := store.List(ctx, ListFilter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != "f-3" || all[2].ID != "f-1" {
		t.Errorf("List order = %v, want newest first", ids(all))
	}

	got, err := store.List(ctx, ListFilter{Kind: report.KindHeartbeat})
	if err != nil {
		t.Fatalf("List by kind: %v", err)
	}
	if len(got) != 1 || got[0].ID != "f-2" {
		t.Errorf("filter by kind = %v, want [f-2]", ids(got))
	}

	pending, err := store.GetPending(ctx)
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("pending = %v, want 2 records", ids(pending))
	}

	got, err = store.List(ctx, ListFilter{Since: base.Add(30 * time.Second)})
	if err != nil {
		t.Fatalf("List since: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("filter since = %v, want 2 records", ids(got))
	}

	got, err = store.List(ctx, ListFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("List page: %v", err)
	}
	if len(got) != 1 || got[0].ID != "f-2" {
		t.Errorf("page = %v, want [f-2]", ids(got))
	}

	got, err = store.List(ctx, ListFilter{Offset: 2})
	if err != nil {
		t.Fatalf("List offset: %v", err)
	}
	if len(got) != 1 || got[0].ID != "f-1" {
		t.Errorf("offset = %v, want [f-1]", ids(got))
	}
}

func TestStoreGetByIDNotFound(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.GetByID(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func ids(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestHTTPHandlers(t *testing.T) {
	store := setupTestStore(t)
	relay := &fakeChannel{name: "relay", ready: true, err: errors.New("down")}
	d := NewDispatcher(testFormatter(), []Channel{relay}, WithOutbox(store), WithLogger(quietLogger()))
	ctx := context.Background()

	r := chi.NewRouter()
	RegisterRoutes(r, store, d)

	d.Send(ctx, testReport("api-1"))

	t.Run("GET /api/outbox", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/outbox", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var got []Record
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if len(got) != 1 || got[0].ID != "api-1" {
			t.Errorf("expected [api-1], got %v", ids(got))
		}
	})

	t.Run("GET /api/outbox/{id} not found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/outbox/nonexistent", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("POST /api/outbox/{id}/resend failing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/outbox/api-1/resend", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusBadGateway)
		}
	})

	t.Run("POST /api/outbox/{id}/resend", func(t *testing.T) {
		relay.err = nil
		req := httptest.NewRequest(http.MethodPost, "/api/outbox/api-1/resend", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var res Result
		if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if !res.Delivered {
			t.Error("expected Delivered = true")
		}
	})

	t.Run("GET /api/outbox/pending", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/outbox/pending", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		if body := strings.TrimSpace(w.Body.String()); body != "[]" {
			t.Errorf("body = %s, want []", body)
		}
	})

	t.Run("GET /api/channels", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/channels", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		var got []channelView
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
		if len(got) != 1 || got[0].Name != "relay" || !got[0].Ready {
			t.Errorf("channels = %+v", got)
		}
	})
}
