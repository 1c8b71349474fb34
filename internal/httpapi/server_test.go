package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/prepa3/turnstile/internal/httpapi"
	"github.com/prepa3/turnstile/internal/turnstile/attendance"
	"github.com/prepa3/turnstile/internal/turnstile/broadcast"
	"github.com/prepa3/turnstile/internal/turnstile/service"
	"github.com/prepa3/turnstile/internal/turnstile/store/memory"
	"github.com/prepa3/turnstile/internal/turnstile/types"
)

type testEnv struct {
	ts    *httptest.Server
	store *memory.Store
	hub   *broadcast.Hub
}

// newTestServer wires up the full dependency graph using the in-memory
// store and returns an httptest.Server whose URL can be hit with a plain
// http.Client.
func newTestServer(t *testing.T, apiKey string, students ...attendance.Student) testEnv {
	t.Helper()

	logger := log.New(io.Discard, "", 0)
	ms := memory.New()
	for _, st := range students {
		if err := ms.Create(context.Background(), st); err != nil {
			t.Fatalf("seed %s: %v", st.ID, err)
		}
	}
	hub := broadcast.NewHub(logger, nil)
	t.Cleanup(hub.Close)

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:            logger,
		Addr:              ":0",
		AttendanceService: service.NewAttendanceService(ms, hub, service.AttendanceConfig{Location: time.UTC}, logger),
		ReportService:     service.NewReportService(ms),
		RosterService:     service.NewRosterService(ms, logger),
		Events:            hub,
		APIKey:            apiKey,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return testEnv{ts: ts, store: ms, hub: hub}
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// ── Access ───────────────────────────────────────────────────────────────────

func TestAccess_EnterThenDuplicate(t *testing.T) {
	env := newTestServer(t, "", attendance.Student{ID: "S1", Name: "Ana"})

	resp := do(t, http.MethodPost, env.ts.URL+"/v1/students/S1/access", `{"exit":false}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out types.AccessResponse
	decode(t, resp, &out)
	if !out.Accepted || out.ID != "S1" || out.Reason != types.ReasonAccepted {
		t.Errorf("unexpected response %+v", out)
	}

	resp = do(t, http.MethodPost, env.ts.URL+"/v1/students/S1/access", `{"exit":false}`)
	decode(t, resp, &out)
	if out.Accepted || out.Reason != types.ReasonAlreadyInside {
		t.Errorf("expected rejection, got %+v", out)
	}
}

func TestAccess_UnknownStudent_404(t *testing.T) {
	env := newTestServer(t, "")
	resp := do(t, http.MethodPost, env.ts.URL+"/v1/students/ghost/access", `{"exit":false}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAccess_MissingExit_400(t *testing.T) {
	env := newTestServer(t, "", attendance.Student{ID: "S1"})
	resp := do(t, http.MethodPost, env.ts.URL+"/v1/students/S1/access", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var body struct {
		Error string `json:"error"`
	}
	decode(t, resp, &body)
	if body.Error != "invalid_input" {
		t.Errorf("expected invalid_input, got %q", body.Error)
	}
}

func TestAccess_InvalidJSON_400(t *testing.T) {
	env := newTestServer(t, "", attendance.Student{ID: "S1"})
	resp := do(t, http.MethodPost, env.ts.URL+"/v1/students/S1/access", `not json at all`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestAccess_Protobuf(t *testing.T) {
	env := newTestServer(t, "", attendance.Student{ID: "S1", Name: "Ana"})

	msg, err := structpb.NewStruct(map[string]any{"exit": false})
	if err != nil {
		t.Fatalf("new struct: %v", err)
	}
	body, err := proto.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	resp, err := http.Post(env.ts.URL+"/v1/students/S1/access", "application/x-protobuf", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/x-protobuf" {
		t.Errorf("expected protobuf response, got %q", ct)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var out structpb.Struct
	if err := proto.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	fields := out.GetFields()
	if !fields["accepted"].GetBoolValue() {
		t.Error("expected accepted=true")
	}
	if fields["id"].GetStringValue() != "S1" {
		t.Errorf("expected id=S1, got %q", fields["id"].GetStringValue())
	}
}

// ── Students ─────────────────────────────────────────────────────────────────

func TestRegisterAndGet(t *testing.T) {
	env := newTestServer(t, "")

	resp := do(t, http.MethodPost, env.ts.URL+"/v1/students", `{"id":"S9","name":"Nuevo","semester":"1"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, env.ts.URL+"/v1/students", `{"id":"S9","name":"Otro"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodGet, env.ts.URL+"/v1/students/S9", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var st attendance.Student
	decode(t, resp, &st)
	if st.Name != "Nuevo" || st.Semester != "1" {
		t.Errorf("unexpected student %+v", st)
	}

	resp = do(t, http.MethodGet, env.ts.URL+"/v1/students/nobody", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestListStudents_Filter(t *testing.T) {
	env := newTestServer(t, "",
		attendance.Student{ID: "S1", Name: "Ana Lopez", Group: "101"},
		attendance.Student{ID: "S2", Name: "Bruno Diaz", Group: "102"},
	)

	resp := do(t, http.MethodGet, env.ts.URL+"/v1/students?name=DIAZ", "")
	var list []attendance.Student
	decode(t, resp, &list)
	if len(list) != 1 || list[0].ID != "S2" {
		t.Errorf("expected [S2], got %+v", list)
	}
}

func TestInsideAndStats(t *testing.T) {
	env := newTestServer(t, "",
		attendance.Student{ID: "S1", Semester: "1"},
		attendance.Student{ID: "S2", Semester: "2"},
	)
	do(t, http.MethodPost, env.ts.URL+"/v1/students/S1/access", `{"exit":false}`)

	resp := do(t, http.MethodGet, env.ts.URL+"/v1/students/inside", "")
	var inside []attendance.Student
	decode(t, resp, &inside)
	if len(inside) != 1 || inside[0].ID != "S1" {
		t.Errorf("expected [S1] inside, got %+v", inside)
	}

	resp = do(t, http.MethodGet, env.ts.URL+"/v1/stats", "")
	var stats types.StatsResponse
	decode(t, resp, &stats)
	if stats.Inside != 1 || stats.Outside != 0 || stats.LoginsToday != 1 ||
		stats.TotalStudents != 2 || stats.NewStudents != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestClearLogs(t *testing.T) {
	env := newTestServer(t, "",
		attendance.Student{ID: "S1", Logs: []attendance.EntranceLog{{At: 1, Accepted: true}}},
		attendance.Student{ID: "S2", Logs: []attendance.EntranceLog{{At: 2, Accepted: true}}},
	)

	resp := do(t, http.MethodPost, env.ts.URL+"/v1/students/S1/logs/clear", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPost, env.ts.URL+"/v1/logs/clear", "")
	var out types.ClearAllLogsResponse
	decode(t, resp, &out)
	if out.Cleaned != 1 {
		t.Errorf("expected cleaned=1, got %d", out.Cleaned)
	}
}

// ── Reports ──────────────────────────────────────────────────────────────────

func TestReports_AddEditRemove(t *testing.T) {
	env := newTestServer(t, "", attendance.Student{ID: "S1"})
	base := env.ts.URL + "/v1/students/S1/reports"

	resp := do(t, http.MethodPost, base, `{"reason":"fight","reported_by":"prefect","at":100,"due_date":"2099-01-01","suspended":true}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	// An active suspension blocks entry.
	resp = do(t, http.MethodPost, env.ts.URL+"/v1/students/S1/access", `{"exit":false}`)
	var access types.AccessResponse
	decode(t, resp, &access)
	if access.Accepted || !access.Suspended || access.Reason != types.ReasonSuspended {
		t.Errorf("expected suspended rejection, got %+v", access)
	}

	resp = do(t, http.MethodPatch, base+"/100", `{"suspended":false}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var st attendance.Student
	decode(t, resp, &st)
	if st.Reports[0].Suspended {
		t.Error("expected suspension lifted")
	}

	resp = do(t, http.MethodPatch, base+"/555", `{"suspended":false}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown report, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPatch, base+"/abc", `{}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for a non-numeric key, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodDelete, base+"/100", "")
	decode(t, resp, &st)
	if len(st.Reports) != 0 {
		t.Errorf("expected no reports, got %+v", st.Reports)
	}
}

func TestReports_MissingReason_400(t *testing.T) {
	env := newTestServer(t, "", attendance.Student{ID: "S1"})
	resp := do(t, http.MethodPost, env.ts.URL+"/v1/students/S1/reports", `{"reported_by":"prefect"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

// ── Middleware ───────────────────────────────────────────────────────────────

func TestAPIKey(t *testing.T) {
	env := newTestServer(t, "s3cret", attendance.Student{ID: "S1"})

	resp := do(t, http.MethodGet, env.ts.URL+"/v1/stats", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/v1/stats", nil)
	req.Header.Set("X-API-Key", "s3cret")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d", resp2.StatusCode)
	}
}

func TestRequestID(t *testing.T) {
	env := newTestServer(t, "")

	resp := do(t, http.MethodGet, env.ts.URL+"/v1/stats", "")
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected a generated X-Request-ID")
	}

	req, _ := http.NewRequest(http.MethodGet, env.ts.URL+"/v1/stats", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp2.Body.Close()
	if got := resp2.Header.Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("expected echoed request id, got %q", got)
	}
}

// ── Events ───────────────────────────────────────────────────────────────────

func TestEvents_StreamDecisions(t *testing.T) {
	env := newTestServer(t, "", attendance.Student{ID: "S1", Name: "Ana"})

	url := "ws" + strings.TrimPrefix(env.ts.URL, "http") + "/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for env.hub.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	do(t, http.MethodPost, env.ts.URL+"/v1/students/S1/access", `{"exit":false}`)

	want := []string{
		broadcast.EventStudentLogged,
		broadcast.EventCountCurrentlyInside,
		broadcast.EventCountCurrentlyOutside,
	}
	for _, name := range want {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		var frame struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		if frame.Event != name {
			t.Errorf("expected %s, got %s", name, frame.Event)
		}
	}
}
