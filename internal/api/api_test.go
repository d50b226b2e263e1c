package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/GraminSeva/TriageLine/internal/models"
	"github.com/GraminSeva/TriageLine/internal/testutil"
	"github.com/GraminSeva/TriageLine/internal/triage"
)

// newTestServer creates a server around a fully local engine.
func newTestServer() *Server {
	return NewServer(triage.New(), nil)
}

func TestChatHandlerTriagesSymptoms(t *testing.T) {
	server := newTestServer()

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/api/chat", models.ChatRequest{
		SessionID: "s1", Message: "fever since 3 days", Language: "en",
	})
	rr := httptest.NewRecorder()
	server.chatHandler(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "chat symptoms")
	result := testutil.Result(t, testutil.AssertJSONResponse(t, rr, "ok"))
	if result["urgency"] != "MEDIUM" || result["careLevel"] != "PHC" {
		t.Errorf("tier = %v/%v, want MEDIUM/PHC", result["urgency"], result["careLevel"])
	}
	if result["triageCard"] == nil {
		t.Error("expected a triage card")
	}
}

func TestChatHandlerRejectsEmptyMessage(t *testing.T) {
	server := newTestServer()

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/api/chat", models.ChatRequest{Message: "  "})
	rr := httptest.NewRecorder()
	server.chatHandler(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "chat empty message")
	testutil.AssertJSONResponse(t, rr, "error")
}

func TestChatHandlerRejectsBadJSON(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	server.chatHandler(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "chat bad JSON")
}

func TestChatHandlerMethodNotAllowed(t *testing.T) {
	server := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rr := httptest.NewRecorder()
	server.chatHandler(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusMethodNotAllowed, rr.Code, "chat GET")
}

func TestActionHandlerBookingConflict(t *testing.T) {
	server := newTestServer()

	// Set up a triage context, list doctors and slots, then book.
	chat := testutil.CreateHTTPRequest(t, http.MethodPost, "/api/chat", models.ChatRequest{
		SessionID: "s1", Message: "fever since 3 days",
	})
	server.chatHandler(httptest.NewRecorder(), chat)

	doctors := httptest.NewRecorder()
	server.actionHandler(doctors, testutil.CreateHTTPRequest(t, http.MethodPost, "/api/chat/action", models.ActionRequest{
		SessionID: "s1", ActionID: models.ActionShowDoctors,
	}))
	testutil.AssertHTTPStatus(t, http.StatusOK, doctors.Code, "show doctors")
	doctorList := testutil.Result(t, testutil.AssertJSONResponse(t, doctors, "ok"))["doctors"].([]interface{})
	doctorID := doctorList[0].(map[string]interface{})["id"].(float64)

	slots := httptest.NewRecorder()
	server.actionHandler(slots, testutil.CreateHTTPRequest(t, http.MethodPost, "/api/chat/action", models.ActionRequest{
		SessionID: "s1", ActionID: models.ActionShowSlots,
		Payload: map[string]any{"doctorId": doctorID},
	}))
	slotList := testutil.Result(t, testutil.AssertJSONResponse(t, slots, "ok"))["slots"].([]interface{})
	slotID := slotList[0].(map[string]interface{})["id"].(float64)

	book := func(sessionID string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		server.actionHandler(rr, testutil.CreateHTTPRequest(t, http.MethodPost, "/api/chat/action", models.ActionRequest{
			SessionID: sessionID, ActionID: models.ActionBookAppointment,
			Payload: map[string]any{"doctorId": doctorID, "slotId": slotID},
		}))
		return rr
	}

	first := book("s1")
	testutil.AssertHTTPStatus(t, http.StatusOK, first.Code, "first booking")
	result := testutil.Result(t, testutil.AssertJSONResponse(t, first, "ok"))
	if result["booking"] == nil {
		t.Fatal("expected a booking in the response")
	}

	second := book("s2")
	testutil.AssertHTTPStatus(t, http.StatusConflict, second.Code, "double booking")
	testutil.AssertJSONResponse(t, second, "error")
}

func TestActionHandlerErrorStatuses(t *testing.T) {
	server := newTestServer()

	cases := []struct {
		name   string
		req    models.ActionRequest
		status int
	}{
		{"unknown action", models.ActionRequest{SessionID: "s1", ActionID: "DANCE"}, http.StatusBadRequest},
		{"missing doctor id", models.ActionRequest{SessionID: "s1", ActionID: models.ActionShowSlots}, http.StatusBadRequest},
		{"unknown doctor", models.ActionRequest{
			SessionID: "s1", ActionID: models.ActionShowSlots,
			Payload: map[string]any{"doctorId": 9999},
		}, http.StatusNotFound},
		{"missing slot id", models.ActionRequest{
			SessionID: "s1", ActionID: models.ActionBookAppointment,
			Payload: map[string]any{"doctorId": 1},
		}, http.StatusBadRequest},
	}
	for _, c := range cases {
		rr := httptest.NewRecorder()
		server.actionHandler(rr, testutil.CreateHTTPRequest(t, http.MethodPost, "/api/chat/action", c.req))
		testutil.AssertHTTPStatus(t, c.status, rr.Code, c.name)
	}
}

func TestTriageHandler(t *testing.T) {
	server := newTestServer()

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/api/triage", models.TriageRequest{
		Text: "snake bite on my leg",
	})
	rr := httptest.NewRecorder()
	server.triageHandler(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "triage")
	result := testutil.Result(t, testutil.AssertJSONResponse(t, rr, "ok"))
	if result["urgency"] != "HIGH" || result["careLevel"] != "EMERGENCY" {
		t.Errorf("tier = %v/%v, want HIGH/EMERGENCY", result["urgency"], result["careLevel"])
	}
}

func TestSessionLifecycle(t *testing.T) {
	server := newTestServer()

	start := httptest.NewRecorder()
	server.sessionStartHandler(start, testutil.CreateHTTPRequest(t, http.MethodPost, "/api/session/start", models.SessionStartRequest{Language: "hi"}))
	testutil.AssertHTTPStatus(t, http.StatusCreated, start.Code, "session start")
	created := testutil.Result(t, testutil.AssertJSONResponse(t, start, "ok"))
	id, _ := created["sessionId"].(string)
	if id == "" {
		t.Fatal("expected a session id")
	}
	if created["language"] != "hi" {
		t.Errorf("language = %v, want hi", created["language"])
	}

	get := httptest.NewRecorder()
	server.sessionHandler(get, httptest.NewRequest(http.MethodGet, "/api/session/"+id, nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, get.Code, "session get")

	missing := httptest.NewRecorder()
	server.sessionHandler(missing, httptest.NewRequest(http.MethodGet, "/api/session/nope", nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, missing.Code, "session missing")
}

func TestFacilitiesHandler(t *testing.T) {
	server := newTestServer()

	// No locator configured, so the seeded directory serves the lookup.
	rr := httptest.NewRecorder()
	server.facilitiesHandler(rr, httptest.NewRequest(http.MethodGet, "/api/facilities/nearby?pincode=412207", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "facilities ok")
	result := testutil.Result(t, testutil.AssertJSONResponse(t, rr, "ok"))
	if facilities, ok := result["facilities"].([]interface{}); !ok || len(facilities) == 0 {
		t.Errorf("expected facilities, got %v", result["facilities"])
	}

	bad := httptest.NewRecorder()
	server.facilitiesHandler(bad, httptest.NewRequest(http.MethodGet, "/api/facilities/nearby?pincode=12", nil))
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, bad.Code, "facilities bad pincode")
}

func TestHealthHandler(t *testing.T) {
	server := newTestServer()

	rr := httptest.NewRecorder()
	server.healthHandler(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "health")
	testutil.AssertJSONResponse(t, rr, "ok")
}

func TestRoutesWired(t *testing.T) {
	server := newTestServer()
	srv := httptest.NewServer(server.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()
	testutil.AssertHTTPStatus(t, http.StatusOK, resp.StatusCode, "routed health")

	form := url.Values{"From": {"+15550100"}, "Body": {"hello"}}
	resp2, err := http.PostForm(srv.URL+"/webhook/sms", form)
	if err != nil {
		t.Fatalf("POST /webhook/sms failed: %v", err)
	}
	defer resp2.Body.Close()
	testutil.AssertHTTPStatus(t, http.StatusOK, resp2.StatusCode, "routed webhook")
}
