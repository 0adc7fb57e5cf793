package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/outshift/triagent/pkg/a2a"
	"github.com/outshift/triagent/pkg/config"
	"github.com/outshift/triagent/pkg/jsonrpc"
	"github.com/outshift/triagent/pkg/task"
	"github.com/outshift/triagent/pkg/tbac"
	"github.com/outshift/triagent/pkg/triage"
)

// fakeBridge scripts the triage engine.
type fakeBridge struct {
	reply       string
	surveyState string
	summary     triage.Summary

	startErr    error
	continueErr error
	summaryErr  error

	summaryCalls int
}

func (f *fakeBridge) StartSession(ctx context.Context, age int, sex, complaint string) (triage.Session, string, error) {
	if f.startErr != nil {
		return triage.Session{}, "", f.startErr
	}
	return triage.Session{Token: "tok-1", SurveyID: "sv-1"}, f.reply, nil
}

func (f *fakeBridge) Continue(ctx context.Context, session triage.Session, text string) (string, string, error) {
	if f.continueErr != nil {
		return "", "", f.continueErr
	}
	return f.reply, f.surveyState, nil
}

func (f *fakeBridge) Summary(ctx context.Context, session triage.Session) (triage.Summary, error) {
	f.summaryCalls++
	if f.summaryErr != nil {
		return triage.Summary{}, f.summaryErr
	}
	return f.summary, nil
}

type testService struct {
	bridge *fakeBridge
	store  *task.Store
	srv    *httptest.Server
}

func newTestService(t *testing.T, gate *tbac.Gate) *testService {
	t.Helper()
	if gate == nil {
		gate = tbac.NewGate(config.TBACConfig{})
	}
	bridge := &fakeBridge{
		reply:       "How long have you had these symptoms?",
		surveyState: task.SurveyInProgress,
		summary: triage.Summary{
			UrgencyLevel: "consultation_24",
			DoctorType:   "general practitioner",
			Notes:        "See a doctor within 24 hours",
		},
	}
	store := task.NewStore()
	dispatcher := NewDispatcher(store, gate, bridge)
	server := NewServer(config.ServerConfig{Host: "127.0.0.1", Port: 8000}, dispatcher, store, gate, nil)

	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)
	return &testService{bridge: bridge, store: store, srv: srv}
}

func (ts *testService) rpc(t *testing.T, method string, params any) jsonrpc.Response {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	return ts.post(t, body)
}

func (ts *testService) post(t *testing.T, body []byte) jsonrpc.Response {
	t.Helper()
	resp, err := http.Post(ts.srv.URL+"/", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var out jsonrpc.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func decodeTask(t *testing.T, result any) a2a.Task {
	t.Helper()
	raw, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("remarshal result: %v", err)
	}
	var tk a2a.Task
	if err := json.Unmarshal(raw, &tk); err != nil {
		t.Fatalf("decode task: %v", err)
	}
	return tk
}

func sendParams(text, taskID string) map[string]any {
	msg := map[string]any{
		"role":  "user",
		"parts": []map[string]any{{"kind": "text", "text": text}},
	}
	if taskID != "" {
		msg["taskId"] = taskID
	}
	return map[string]any{"message": msg}
}

func TestConversationLifecycle(t *testing.T) {
	ts := newTestService(t, nil)

	// First turn opens a session and waits for input.
	resp := ts.rpc(t, "message/send", sendParams("I am a 45 years old man with chest pain", ""))
	if resp.Error != nil {
		t.Fatalf("rpc error: %+v", resp.Error)
	}
	tk := decodeTask(t, resp.Result)
	if tk.Status.State != a2a.TaskStateInputRequired {
		t.Fatalf("state = %s", tk.Status.State)
	}
	if len(tk.History) != 2 {
		t.Fatalf("history length = %d, want user+agent", len(tk.History))
	}
	if tk.History[0].Role != a2a.MessageRoleUser || tk.History[1].Role != a2a.MessageRoleAgent {
		t.Errorf("history roles = %s, %s", tk.History[0].Role, tk.History[1].Role)
	}
	if tk.Status.Message == nil || tk.Status.Message.Text() != ts.bridge.reply {
		t.Errorf("status message = %+v", tk.Status.Message)
	}
	if tk.Metadata[task.MetaTriageState] != task.SurveyInProgress {
		t.Errorf("triage_state = %v, want %s", tk.Metadata[task.MetaTriageState], task.SurveyInProgress)
	}

	// Second turn stays in progress.
	resp = ts.rpc(t, "message/send", sendParams("it started an hour ago", tk.ID))
	tk2 := decodeTask(t, resp.Result)
	if tk2.ID != tk.ID {
		t.Fatalf("continuation created a new task")
	}
	if tk2.Status.State != a2a.TaskStateInputRequired {
		t.Errorf("state = %s", tk2.Status.State)
	}
	if len(tk2.History) != 4 {
		t.Errorf("history length = %d", len(tk2.History))
	}

	// Final turn presents the result; the summary becomes an artifact.
	ts.bridge.surveyState = task.SurveyPresentResult
	resp = ts.rpc(t, "message/send", sendParams("no other symptoms", tk.ID))
	tk3 := decodeTask(t, resp.Result)
	if tk3.Status.State != a2a.TaskStateCompleted {
		t.Fatalf("state = %s", tk3.Status.State)
	}
	if len(tk3.Artifacts) != 1 {
		t.Fatalf("artifacts = %d", len(tk3.Artifacts))
	}
	data := tk3.Artifacts[0].Parts[0].Data
	if data["urgency_level"] != "consultation_24" {
		t.Errorf("urgency_level = %v", data["urgency_level"])
	}
	if ts.bridge.summaryCalls != 1 {
		t.Errorf("summary fetched %d times, want 1", ts.bridge.summaryCalls)
	}

	// Completed tasks refuse further turns.
	resp = ts.rpc(t, "message/send", sendParams("hello again?", tk.ID))
	if resp.Error == nil || resp.Error.Code != jsonrpc.CodeTaskNotContinuable {
		t.Errorf("continuing terminal task: %+v", resp.Error)
	}
}

func TestPostResultCompletesWithoutSummary(t *testing.T) {
	ts := newTestService(t, nil)

	resp := ts.rpc(t, "message/send", sendParams("fever", ""))
	tk := decodeTask(t, resp.Result)

	ts.bridge.surveyState = task.SurveyPostResult
	resp = ts.rpc(t, "message/send", sendParams("still here", tk.ID))
	tk2 := decodeTask(t, resp.Result)
	if tk2.Status.State != a2a.TaskStateCompleted {
		t.Errorf("state = %s", tk2.Status.State)
	}
	if ts.bridge.summaryCalls != 0 {
		t.Errorf("summary fetched %d times, want 0", ts.bridge.summaryCalls)
	}
	if len(tk2.Artifacts) != 0 {
		t.Errorf("artifacts = %d, want none for post_result", len(tk2.Artifacts))
	}
}

func TestSummaryFailureCompletesWithDefaults(t *testing.T) {
	ts := newTestService(t, nil)

	resp := ts.rpc(t, "message/send", sendParams("headache", ""))
	tk := decodeTask(t, resp.Result)

	ts.bridge.surveyState = task.SurveyPresentResult
	ts.bridge.summaryErr = errors.New("summary endpoint down")
	resp = ts.rpc(t, "message/send", sendParams("nothing else", tk.ID))
	tk2 := decodeTask(t, resp.Result)

	if tk2.Status.State != a2a.TaskStateCompleted {
		t.Fatalf("state = %s", tk2.Status.State)
	}
	data := tk2.Artifacts[0].Parts[0].Data
	if data["urgency_level"] != "standard" || data["doctor_type"] != "general practitioner" {
		t.Errorf("artifact data = %v", data)
	}
}

func TestStartSessionFailureYieldsFailedTask(t *testing.T) {
	ts := newTestService(t, nil)
	ts.bridge.startErr = &triage.APIError{Operation: "get token", StatusCode: 401, Message: "denied"}

	resp := ts.rpc(t, "message/send", sendParams("dizzy", ""))
	if resp.Error != nil {
		t.Fatalf("upstream failure must be absorbed, got rpc error %+v", resp.Error)
	}
	tk := decodeTask(t, resp.Result)
	if tk.Status.State != a2a.TaskStateFailed {
		t.Errorf("state = %s", tk.Status.State)
	}
}

func TestContinueFailureYieldsFailedTask(t *testing.T) {
	ts := newTestService(t, nil)

	resp := ts.rpc(t, "message/send", sendParams("cough", ""))
	tk := decodeTask(t, resp.Result)

	ts.bridge.continueErr = errors.New("engine unavailable")
	resp = ts.rpc(t, "message/send", sendParams("worse today", tk.ID))
	if resp.Error != nil {
		t.Fatalf("upstream failure must be absorbed, got rpc error %+v", resp.Error)
	}
	tk2 := decodeTask(t, resp.Result)
	if tk2.Status.State != a2a.TaskStateFailed {
		t.Errorf("state = %s", tk2.Status.State)
	}
}

func TestUnknownTaskIDCreatesFreshTask(t *testing.T) {
	ts := newTestService(t, nil)

	resp := ts.rpc(t, "message/send", sendParams("rash", "no-such-task"))
	if resp.Error != nil {
		t.Fatalf("rpc error: %+v", resp.Error)
	}
	tk := decodeTask(t, resp.Result)
	if tk.ID == "no-such-task" || tk.ID == "" {
		t.Errorf("task id = %q, want fresh server-generated id", tk.ID)
	}
}

func TestTasksGet(t *testing.T) {
	ts := newTestService(t, nil)

	resp := ts.rpc(t, "message/send", sendParams("sore knee", ""))
	tk := decodeTask(t, resp.Result)

	// Grow history past the default limit.
	for i := 0; i < 8; i++ {
		ts.rpc(t, "message/send", sendParams("more detail", tk.ID))
	}

	resp = ts.rpc(t, "tasks/get", map[string]any{"id": tk.ID})
	got := decodeTask(t, resp.Result)
	if len(got.History) != 10 {
		t.Errorf("default history cap = %d, want 10", len(got.History))
	}

	resp = ts.rpc(t, "tasks/get", map[string]any{"id": tk.ID, "historyLength": 3})
	got = decodeTask(t, resp.Result)
	if len(got.History) != 3 {
		t.Errorf("history = %d, want 3", len(got.History))
	}

	resp = ts.rpc(t, "tasks/get", map[string]any{"id": "missing"})
	if resp.Error == nil || resp.Error.Code != jsonrpc.CodeTaskNotFound {
		t.Errorf("error = %+v, want task not found", resp.Error)
	}
}

func TestTasksCancel(t *testing.T) {
	ts := newTestService(t, nil)

	resp := ts.rpc(t, "message/send", sendParams("stomach ache", ""))
	tk := decodeTask(t, resp.Result)

	resp = ts.rpc(t, "tasks/cancel", map[string]any{"id": tk.ID})
	got := decodeTask(t, resp.Result)
	if got.Status.State != a2a.TaskStateCanceled {
		t.Errorf("state = %s", got.Status.State)
	}

	resp = ts.rpc(t, "tasks/cancel", map[string]any{"id": tk.ID})
	if resp.Error == nil || resp.Error.Code != jsonrpc.CodeTaskNotContinuable {
		t.Errorf("second cancel = %+v", resp.Error)
	}

	resp = ts.rpc(t, "tasks/cancel", map[string]any{"id": "missing"})
	if resp.Error == nil || resp.Error.Code != jsonrpc.CodeTaskNotFound {
		t.Errorf("cancel missing = %+v", resp.Error)
	}
}

func TestEnvelopeValidation(t *testing.T) {
	ts := newTestService(t, nil)

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{
			name:     "malformed json",
			body:     `{"jsonrpc": "2.0",`,
			wantCode: jsonrpc.CodeParseError,
		},
		{
			name:     "wrong version",
			body:     `{"jsonrpc":"1.0","id":1,"method":"tasks/get","params":{}}`,
			wantCode: jsonrpc.CodeInvalidRequest,
		},
		{
			name:     "missing method",
			body:     `{"jsonrpc":"2.0","id":1,"params":{}}`,
			wantCode: jsonrpc.CodeInvalidRequest,
		},
		{
			name:     "missing id",
			body:     `{"jsonrpc":"2.0","method":"tasks/get","params":{"id":"x"}}`,
			wantCode: jsonrpc.CodeInvalidRequest,
		},
		{
			name:     "null id accepted",
			body:     `{"jsonrpc":"2.0","id":null,"method":"tasks/stream","params":{}}`,
			wantCode: jsonrpc.CodeMethodNotFound,
		},
		{
			name:     "non-object body",
			body:     `[1,2,3]`,
			wantCode: jsonrpc.CodeInvalidRequest,
		},
		{
			name:     "unknown method",
			body:     `{"jsonrpc":"2.0","id":1,"method":"tasks/stream","params":{}}`,
			wantCode: jsonrpc.CodeMethodNotFound,
		},
		{
			name:     "missing message param",
			body:     `{"jsonrpc":"2.0","id":1,"method":"message/send","params":{}}`,
			wantCode: jsonrpc.CodeInvalidParams,
		},
		{
			name:     "unsupported part kind",
			body:     `{"jsonrpc":"2.0","id":1,"method":"message/send","params":{"message":{"role":"user","parts":[{"kind":"file","uri":"x"}]}}}`,
			wantCode: jsonrpc.CodeInvalidParams,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.post(t, []byte(tt.body))
			if resp.Error == nil {
				t.Fatal("expected rpc error")
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

// deniedIdentity always refuses to authorize peers.
type deniedIdentity struct{}

func (deniedIdentity) AccessToken(ctx context.Context, targetServiceID string) (string, error) {
	return "some-token", nil
}

func (deniedIdentity) Authorize(ctx context.Context, token string) (bool, error) {
	return false, nil
}

func TestUnauthorizedGateDeniesRequests(t *testing.T) {
	creds := config.TBACConfig{
		IdentityServiceURL: "http://identity.local",
		AgentAPIKey:        "ak", AgentID: "a1",
		ServiceAPIKey: "sk", ServiceID: "s1",
	}
	gate := tbac.NewGateWithClients(creds, deniedIdentity{}, deniedIdentity{})
	gate.Authorize(context.Background())

	ts := newTestService(t, gate)
	resp := ts.rpc(t, "message/send", sendParams("hello", ""))
	if resp.Error == nil || resp.Error.Code != jsonrpc.CodeUnauthorized {
		t.Fatalf("error = %+v, want authorization error", resp.Error)
	}

	data, ok := resp.Error.Data.(map[string]any)
	if !ok || data["tbac_error"] != true {
		t.Errorf("error data = %v", resp.Error.Data)
	}

	if ts.store.Count() != 0 {
		t.Errorf("denied request must not create tasks, store has %d", ts.store.Count())
	}
}

// allowedIdentity authorizes every token it is asked to verify.
type allowedIdentity struct{}

func (allowedIdentity) AccessToken(ctx context.Context, targetServiceID string) (string, error) {
	return "some-token", nil
}

func (allowedIdentity) Authorize(ctx context.Context, token string) (bool, error) {
	return true, nil
}

func TestOutboundDenialAfterTaskMutation(t *testing.T) {
	creds := config.TBACConfig{
		IdentityServiceURL: "http://identity.local",
		AgentAPIKey:        "ak", AgentID: "a1",
		ServiceAPIKey: "sk", ServiceID: "s1",
	}
	// The service client verifies the agent's token, so inbound passes;
	// the agent client refuses the service's token, so outbound is denied.
	gate := tbac.NewGateWithClients(creds, deniedIdentity{}, allowedIdentity{})
	gate.Authorize(context.Background())

	ts := newTestService(t, gate)
	resp := ts.rpc(t, "message/send", sendParams("hello", ""))
	if resp.Error == nil || resp.Error.Code != jsonrpc.CodeUnauthorized {
		t.Fatalf("error = %+v, want authorization error", resp.Error)
	}

	data, ok := resp.Error.Data.(map[string]any)
	if !ok || data["operation"] != "send_response" {
		t.Errorf("error data = %v, want operation send_response", resp.Error.Data)
	}

	// The task was created before the outbound check ran.
	if ts.store.Count() != 1 {
		t.Errorf("store has %d tasks, want 1", ts.store.Count())
	}
}

func TestDispatchEmitsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	ts := newTestService(t, nil)
	resp := ts.rpc(t, "message/send", sendParams("hello", ""))
	if resp.Error != nil {
		t.Fatalf("rpc error: %+v", resp.Error)
	}

	byName := map[string]tracetest.SpanStub{}
	for _, s := range exporter.GetSpans() {
		byName[s.Name] = s
	}

	rpcSpan, ok := byName["rpc.dispatch"]
	if !ok {
		t.Fatal("no rpc.dispatch span recorded")
	}
	var method string
	for _, attr := range rpcSpan.Attributes {
		if string(attr.Key) == "rpc.method" {
			method = attr.Value.AsString()
		}
	}
	if method != "message/send" {
		t.Errorf("rpc.method attribute = %q", method)
	}

	bridgeSpan, ok := byName["triage.start_session"]
	if !ok {
		t.Fatal("no triage.start_session span recorded")
	}
	if bridgeSpan.Parent.SpanID() != rpcSpan.SpanContext.SpanID() {
		t.Error("bridge span is not a child of the rpc span")
	}
}
