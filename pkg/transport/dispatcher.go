// Package transport exposes the A2A service over HTTP: the JSON-RPC
// dispatcher, the discovery and health endpoints, and the server
// lifecycle.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/outshift/triagent/pkg/a2a"
	"github.com/outshift/triagent/pkg/extract"
	"github.com/outshift/triagent/pkg/jsonrpc"
	"github.com/outshift/triagent/pkg/observability"
	"github.com/outshift/triagent/pkg/task"
	"github.com/outshift/triagent/pkg/tbac"
	"github.com/outshift/triagent/pkg/triage"
)

// Demographic defaults applied when extraction finds nothing in the
// complaint text.
const (
	defaultAge = 64
	defaultSex = extract.SexFemale
)

// Bridge is the triage engine surface the dispatcher needs.
type Bridge interface {
	StartSession(ctx context.Context, age int, sex, complaint string) (triage.Session, string, error)
	Continue(ctx context.Context, session triage.Session, text string) (string, string, error)
	Summary(ctx context.Context, session triage.Session) (triage.Summary, error)
}

// Dispatcher validates JSON-RPC envelopes, applies the authorization
// gate, and routes the A2A methods.
type Dispatcher struct {
	store  *task.Store
	gate   *tbac.Gate
	bridge Bridge
}

// NewDispatcher wires the dispatcher's collaborators.
func NewDispatcher(store *task.Store, gate *tbac.Gate, bridge Bridge) *Dispatcher {
	return &Dispatcher{store: store, gate: gate, bridge: bridge}
}

// ServeHTTP handles the JSON-RPC POST endpoint. A request must be a JSON
// object carrying jsonrpc "2.0", a method, and an id; anything else is
// rejected before dispatch.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeResponse(w, jsonrpc.NewErrorResponse(nil,
			jsonrpc.NewError(jsonrpc.CodeParseError, "Parse error", nil)))
		return
	}

	var req jsonrpc.Request
	if err := json.Unmarshal(body, &req); err != nil {
		// Well-formed JSON that is not a request object is an invalid
		// request, not a parse error.
		if json.Valid(body) {
			writeResponse(w, jsonrpc.NewErrorResponse(nil,
				jsonrpc.NewError(jsonrpc.CodeInvalidRequest, "Invalid Request", nil)))
			return
		}
		writeResponse(w, jsonrpc.NewErrorResponse(nil,
			jsonrpc.NewError(jsonrpc.CodeParseError, "Parse error", nil)))
		return
	}

	if req.JSONRPC != jsonrpc.Version || req.Method == "" || !req.HasID() {
		slog.Warn("Invalid JSON-RPC request", "method", req.Method, "version", req.JSONRPC)
		writeResponse(w, jsonrpc.NewErrorResponse(req.ID,
			jsonrpc.NewError(jsonrpc.CodeInvalidRequest, "Invalid Request", nil)))
		return
	}

	tracer := observability.GetTracer("triagent.rpc")
	ctx, span := tracer.Start(r.Context(), "rpc.dispatch",
		trace.WithAttributes(attribute.String("rpc.method", req.Method)))
	defer span.End()

	start := time.Now()
	resp := d.dispatch(ctx, &req)
	if resp.Error != nil {
		span.SetAttributes(attribute.Int("rpc.error_code", resp.Error.Code))
		span.SetStatus(codes.Error, resp.Error.Message)
	} else {
		span.SetStatus(codes.Ok, "success")
	}
	if m := observability.GetGlobalMetrics(); m != nil {
		m.RecordRPC(ctx, req.Method, time.Since(start), resp.Error != nil)
	}
	writeResponse(w, resp)
}

func (d *Dispatcher) dispatch(ctx context.Context, req *jsonrpc.Request) (resp jsonrpc.Response) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("Panic while handling request", "method", req.Method, "panic", rec)
			resp = jsonrpc.NewErrorResponse(req.ID,
				jsonrpc.NewError(jsonrpc.CodeInternalError, "Internal error", nil))
		}
	}()

	if err := d.gate.CheckInbound(); err != nil {
		slog.Warn("Request denied by authorization gate", "method", req.Method)
		return authErrorResponse(req.ID, tbac.DirectionInbound)
	}

	var result any
	var rpcErr *jsonrpc.Error

	switch req.Method {
	case "message/send":
		result, rpcErr = d.handleMessageSend(ctx, req.Params)
	case "tasks/get":
		result, rpcErr = d.handleTasksGet(req.Params)
	case "tasks/cancel":
		result, rpcErr = d.handleTasksCancel(req.Params)
	default:
		slog.Warn("Unknown method", "method", req.Method)
		rpcErr = jsonrpc.NewError(jsonrpc.CodeMethodNotFound, "Method not found", nil)
	}

	if rpcErr != nil {
		return jsonrpc.NewErrorResponse(req.ID, rpcErr)
	}

	// The outbound direction is checked before any result leaves the
	// service.
	if err := d.gate.CheckOutbound(); err != nil {
		slog.Warn("Response withheld by authorization gate", "method", req.Method)
		return authErrorResponse(req.ID, tbac.DirectionOutbound)
	}

	return jsonrpc.NewResponse(req.ID, result)
}

func (d *Dispatcher) handleMessageSend(ctx context.Context, params json.RawMessage) (any, *jsonrpc.Error) {
	var p struct {
		Message *a2a.Message `json:"message"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "Invalid params: "+err.Error(), nil)
	}
	if p.Message == nil {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "Invalid params: missing message", nil)
	}

	msg := *p.Message
	if msg.MessageID == "" {
		msg.MessageID = uuid.New().String()
	}
	if msg.Role == "" {
		msg.Role = a2a.MessageRoleUser
	}
	msg.Kind = "message"
	userText := msg.Text()

	if msg.TaskID != "" && d.store.Has(msg.TaskID) {
		return d.continueTask(ctx, msg.TaskID, msg, userText)
	}
	return d.createTask(ctx, msg, userText)
}

// createTask opens a triage session for a first message. Unknown task ids
// fall through here and get a fresh server-generated id rather than
// adopting the caller's.
func (d *Dispatcher) createTask(ctx context.Context, msg a2a.Message, userText string) (any, *jsonrpc.Error) {
	t := a2a.NewTask(msg.ContextID)
	msg.TaskID = t.ID
	msg.ContextID = t.ContextID
	t.AppendHistory(msg)
	t.Metadata[task.MetaTriageState] = "starting"

	demo := extract.ExtractDemographics(userText)
	age := demo.Age
	if age == 0 {
		age = defaultAge
	}
	sex := demo.Sex
	if sex == "" {
		sex = defaultSex
	}

	slog.Info("Creating triage task", "task_id", t.ID, "age", age, "sex", sex)

	session, reply, err := d.startSession(ctx, age, string(sex), userText)
	if err != nil {
		slog.Error("Failed to start triage session", "task_id", t.ID, "error", err)
		task.Fail(t)
	} else {
		t.Metadata[task.MetaToken] = session.Token
		t.Metadata[task.MetaSurveyID] = session.SurveyID
		t.Metadata[task.MetaTriageState] = task.SurveyInProgress

		agentMsg := a2a.NewAgentMessage(t.ID, t.ContextID, reply)
		t.AppendHistory(agentMsg)
		t.Status.Message = &agentMsg
		t.SetState(a2a.TaskStateInputRequired)
	}

	d.store.Put(t)
	if m := observability.GetGlobalMetrics(); m != nil {
		m.TaskAdded(ctx)
	}
	return d.snapshot(t.ID)
}

// continueTask runs one conversational turn under the task's lock, so
// concurrent continuations of the same task are serialized.
func (d *Dispatcher) continueTask(ctx context.Context, taskID string, msg a2a.Message, userText string) (any, *jsonrpc.Error) {
	err := d.store.Update(taskID, func(t *a2a.Task) error {
		if !task.Continuable(t) {
			slog.Warn("Task is terminal, refusing continuation", "task_id", t.ID, "state", t.Status.State)
			return task.ErrTerminal
		}

		msg.TaskID = t.ID
		msg.ContextID = t.ContextID
		t.AppendHistory(msg)

		session := sessionFromMetadata(t)
		if session.Token == "" || session.SurveyID == "" {
			slog.Error("Task has no triage session", "task_id", t.ID)
			task.Fail(t)
			return nil
		}

		reply, surveyState, err := d.continueSession(ctx, session, userText)
		if err != nil {
			slog.Error("Triage turn failed", "task_id", t.ID, "error", err)
			task.Fail(t)
			return nil
		}

		agentMsg := a2a.NewAgentMessage(t.ID, t.ContextID, reply)
		t.AppendHistory(agentMsg)
		t.Status.Message = &agentMsg

		if task.Advance(t, surveyState) {
			summary, err := d.fetchSummary(ctx, session)
			if err != nil {
				slog.Warn("Summary fetch failed, completing with defaults", "task_id", t.ID, "error", err)
			}
			task.Complete(t, summary.UrgencyLevel, summary.DoctorType, summary.Notes)
			slog.Info("Task completed with triage results", "task_id", t.ID)
		}
		return nil
	})

	if err != nil {
		return nil, domainError(err, "Task cannot be continued")
	}
	return d.snapshot(taskID)
}

func (d *Dispatcher) handleTasksGet(params json.RawMessage) (any, *jsonrpc.Error) {
	var p struct {
		ID            string `json:"id"`
		HistoryLength *int   `json:"historyLength"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "Invalid params: "+err.Error(), nil)
	}

	historyLength := 10
	if p.HistoryLength != nil {
		historyLength = *p.HistoryLength
	}

	snap, err := d.store.Snapshot(p.ID, historyLength)
	if err != nil {
		slog.Warn("Task not found", "task_id", p.ID)
		return nil, jsonrpc.NewError(jsonrpc.CodeTaskNotFound, "Task not found", nil)
	}
	return snap, nil
}

func (d *Dispatcher) handleTasksCancel(params json.RawMessage) (any, *jsonrpc.Error) {
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, jsonrpc.NewError(jsonrpc.CodeInvalidParams, "Invalid params: "+err.Error(), nil)
	}

	err := d.store.Update(p.ID, func(t *a2a.Task) error {
		return task.Cancel(t)
	})
	if err != nil {
		return nil, domainError(err, "Task cannot be canceled")
	}

	slog.Info("Task canceled", "task_id", p.ID)
	return d.snapshot(p.ID)
}

func (d *Dispatcher) snapshot(taskID string) (any, *jsonrpc.Error) {
	snap, err := d.store.Snapshot(taskID, 0)
	if err != nil {
		return nil, jsonrpc.NewError(jsonrpc.CodeTaskNotFound, "Task not found", nil)
	}
	return snap, nil
}

// Bridge calls are traced and timed for the triage metrics.

func (d *Dispatcher) startSession(ctx context.Context, age int, sex, complaint string) (triage.Session, string, error) {
	ctx, span := startBridgeSpan(ctx, "start_session")
	defer span.End()

	start := time.Now()
	session, reply, err := d.bridge.StartSession(ctx, age, sex, complaint)
	recordBridgeCall(ctx, span, "start_session", start, err)
	return session, reply, err
}

func (d *Dispatcher) continueSession(ctx context.Context, session triage.Session, text string) (string, string, error) {
	ctx, span := startBridgeSpan(ctx, "send_message")
	defer span.End()

	start := time.Now()
	reply, state, err := d.bridge.Continue(ctx, session, text)
	recordBridgeCall(ctx, span, "send_message", start, err)
	return reply, state, err
}

func (d *Dispatcher) fetchSummary(ctx context.Context, session triage.Session) (triage.Summary, error) {
	ctx, span := startBridgeSpan(ctx, "get_summary")
	defer span.End()

	start := time.Now()
	summary, err := d.bridge.Summary(ctx, session)
	recordBridgeCall(ctx, span, "get_summary", start, err)
	return summary, err
}

func startBridgeSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return observability.GetTracer("triagent.triage").Start(ctx, "triage."+operation,
		trace.WithAttributes(attribute.String("triage.operation", operation)))
}

func recordBridgeCall(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if m := observability.GetGlobalMetrics(); m != nil {
		m.RecordTriageCall(ctx, operation, time.Since(start), err)
	}
}

func sessionFromMetadata(t *a2a.Task) triage.Session {
	token, _ := t.Metadata[task.MetaToken].(string)
	surveyID, _ := t.Metadata[task.MetaSurveyID].(string)
	return triage.Session{Token: token, SurveyID: surveyID}
}

func domainError(err error, terminalMsg string) *jsonrpc.Error {
	switch {
	case errors.Is(err, task.ErrNotFound):
		return jsonrpc.NewError(jsonrpc.CodeTaskNotFound, "Task not found", nil)
	case errors.Is(err, task.ErrTerminal):
		return jsonrpc.NewError(jsonrpc.CodeTaskNotContinuable, terminalMsg, nil)
	default:
		return jsonrpc.NewError(jsonrpc.CodeInternalError, "Internal error", nil)
	}
}

func authErrorResponse(id any, direction tbac.Direction) jsonrpc.Response {
	return jsonrpc.NewErrorResponse(id, jsonrpc.NewError(
		jsonrpc.CodeUnauthorized,
		"Authorization required for "+string(direction),
		map[string]any{"tbac_error": true, "operation": string(direction)},
	))
}

func writeResponse(w http.ResponseWriter, resp jsonrpc.Response) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
