package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dialer-platform/internal/calls"
	"dialer-platform/internal/campaigns"
	"dialer-platform/internal/dispatch"
	"dialer-platform/internal/provisioning"
	"dialer-platform/internal/reconcile"
	"dialer-platform/internal/settings"

	"github.com/gin-gonic/gin"
)

type fakeProv struct{}

func (fakeProv) Name() string { return "fake" }

func (fakeProv) HealthCheck(ctx context.Context) error { return nil }

func (fakeProv) CreateSession(ctx context.Context, req provisioning.CreateSessionRequest) (provisioning.Session, error) {
	return provisioning.Session{Name: req.Name, SID: "SID_" + req.Name}, nil
}

func (fakeProv) DialOut(ctx context.Context, req provisioning.DialOutRequest) (provisioning.DialOutResult, error) {
	return provisioning.DialOutResult{ExternalCallRef: "SCL_" + req.PhoneNumber}, nil
}

type fixture struct {
	router    *gin.Engine
	calls     *calls.MemoryRepo
	campaigns *campaigns.MemoryRepo
	settings  *settings.MemoryRepo
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	callRepo := calls.NewMemoryRepo()
	campaignRepo := campaigns.NewMemoryRepo()
	settingsRepo := settings.NewMemoryRepo()
	store := settings.NewStore(settingsRepo, nil)

	dispatcher := dispatch.NewEngine(campaignRepo, callRepo, fakeProv{}, store)
	reconciler := reconcile.NewEngine(callRepo, campaignRepo)
	tokens, err := provisioning.NewTokenIssuer("APIkey", "secret", time.Hour)
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}

	h := Handlers{
		Campaigns: campaigns.NewService(campaignRepo, callRepo),
		Dispatch:  dispatcher,
		Reconcile: reconciler,
		Settings:  store,
		Tokens:    tokens,
	}

	r := gin.New()
	r.POST("/webhooks/transcript", h.TranscriptWebhook)
	v1 := r.Group("/v1")
	v1.POST("/campaigns", h.CreateCampaign)
	v1.GET("/campaigns", h.ListCampaigns)
	v1.GET("/campaigns/:id", h.GetCampaign)
	v1.POST("/campaigns/:id/dispatch", h.DispatchBatch)
	v1.POST("/dispatch", h.AdHocDial)
	v1.GET("/token", h.JoinToken)
	v1.GET("/settings", h.GetSettings)
	v1.POST("/settings", h.SetSetting)

	return fixture{router: r, calls: callRepo, campaigns: campaignRepo, settings: settingsRepo}
}

func (f fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

func TestCreateAndGetCampaign(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/v1/campaigns", map[string]any{
		"name": "Renewals",
		"contacts": []map[string]any{
			{"phone": "+15550001", "name": "Ana"},
			{"name": "no phone, skipped"},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d body=%s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if got := body["contacts_ingested"].(float64); got != 1 {
		t.Fatalf("contacts_ingested = %v, want 1", got)
	}
	campID := body["campaign"].(map[string]any)["id"].(string)

	w = f.do(t, http.MethodGet, "/v1/campaigns/"+campID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d body=%s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/v1/campaigns", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
}

func TestCreateCampaignRejectsEmpty(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/v1/campaigns", map[string]any{"name": "empty"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestGetCampaignNotFound(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodGet, "/v1/campaigns/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestDispatchBatchOverHTTP(t *testing.T) {
	f := newFixture(t)
	f.settings.Values[settings.KeySIPTrunkID] = "ST_trunk"

	w := f.do(t, http.MethodPost, "/v1/campaigns", map[string]any{
		"contacts": []map[string]any{
			{"phone": "+15550001", "name": "Ana"},
			{"phone": "+15550002", "name": "Bo"},
		},
	})
	campID := decode(t, w)["campaign"].(map[string]any)["id"].(string)

	w = f.do(t, http.MethodPost, "/v1/campaigns/"+campID+"/dispatch", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("dispatch status = %d body=%s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if got := body["dispatched"].(float64); got != 2 {
		t.Fatalf("dispatched = %v, want 2", got)
	}
}

func TestDispatchWithoutTrunkIs500(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/v1/campaigns", map[string]any{
		"contacts": []map[string]any{{"phone": "+15550001"}},
	})
	campID := decode(t, w)["campaign"].(map[string]any)["id"].(string)

	w = f.do(t, http.MethodPost, "/v1/campaigns/"+campID+"/dispatch", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestTranscriptWebhook(t *testing.T) {
	f := newFixture(t)

	call := calls.Call{
		ID:        "call-1",
		ContactID: "ct-1",
		Direction: calls.DirectionOutbound,
		Status:    calls.CallStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := f.calls.Create(context.Background(), call); err != nil {
		t.Fatalf("seed call: %v", err)
	}

	w := f.do(t, http.MethodPost, "/webhooks/transcript", map[string]any{
		"call_id":    "call-1",
		"transcript": "hello",
		"status":     "COMPLETED",
		"duration":   42,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	body := decode(t, w)
	if body["match"] != "call_id" {
		t.Fatalf("match = %v, want call_id", body["match"])
	}

	got, err := f.calls.Get(context.Background(), "call-1")
	if err != nil {
		t.Fatalf("get call: %v", err)
	}
	if got.Status != calls.CallStatusCompleted || got.DurationSeconds != 42 {
		t.Fatalf("call not finalized: %+v", got)
	}
}

func TestTranscriptWebhookRejectsEmptyEvent(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/webhooks/transcript", map[string]any{"transcript": "hello"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/v1/settings", map[string]any{"key": "SYSTEM_PROMPT", "value": "be brief"})
	if w.Code != http.StatusOK {
		t.Fatalf("set status = %d", w.Code)
	}

	w = f.do(t, http.MethodGet, "/v1/settings", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if decode(t, w)["SYSTEM_PROMPT"] != "be brief" {
		t.Fatalf("settings body = %s", w.Body.String())
	}
}

func TestJoinToken(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/v1/token?room=demo&identity=visitor", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if decode(t, w)["token"] == "" {
		t.Fatal("empty token")
	}

	w = f.do(t, http.MethodGet, "/v1/token?room=demo", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestAdHocDialOverHTTP(t *testing.T) {
	f := newFixture(t)
	f.settings.Values[settings.KeySIPTrunkID] = "ST_trunk"

	w := f.do(t, http.MethodPost, "/v1/dispatch", map[string]any{"phone_number": "+15559999"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if decode(t, w)["session_name"] == "" {
		t.Fatal("empty session name")
	}
}
