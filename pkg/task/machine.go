package task

import (
	"log/slog"
	"time"

	"github.com/outshift/triagent/pkg/a2a"
)

// Metadata keys holding bridge-private session state on a task. They are
// opaque to the protocol and only read back by the triage bridge.
const (
	MetaToken       = "triage_token"
	MetaSurveyID    = "survey_id"
	MetaTriageState = "triage_state"
)

// Survey states reported by the triage engine.
const (
	SurveyInProgress    = "in_progress"
	SurveyPresentResult = "present_result"
	SurveyPostResult    = "post_result"
)

// Advance maps a survey state onto the task's protocol state and records
// the raw survey state in metadata. It returns true when the transition
// completed the task and a summary should be fetched: present_result is
// the only state that triggers one; post_result means the result was
// already delivered on an earlier turn, so the task completes without a
// second summary call. Anything else keeps the task waiting for input.
func Advance(t *a2a.Task, surveyState string) (needsSummary bool) {
	t.Metadata[MetaTriageState] = surveyState

	switch surveyState {
	case SurveyPresentResult:
		t.SetState(a2a.TaskStateCompleted)
		return true
	case SurveyPostResult:
		slog.Warn("Survey reported post_result, task should already be completed", "task_id", t.ID)
		t.SetState(a2a.TaskStateCompleted)
		return false
	default:
		t.SetState(a2a.TaskStateInputRequired)
		return false
	}
}

// Complete attaches the assessment artifact. Empty summary fields fall
// back to neutral defaults so the artifact shape is always complete.
func Complete(t *a2a.Task, urgencyLevel, doctorType, notes string) {
	if urgencyLevel == "" {
		urgencyLevel = "standard"
	}
	if doctorType == "" {
		doctorType = "general practitioner"
	}
	if notes == "" {
		notes = "Triage assessment completed"
	}

	t.Artifacts = []a2a.Artifact{
		a2a.NewArtifact(
			"Medical Triage Assessment",
			"Results from medical triage evaluation",
			a2a.DataPart(map[string]any{
				"urgency_level": urgencyLevel,
				"doctor_type":   doctorType,
				"notes":         notes,
				"completed_at":  time.Now().UTC().Format(time.RFC3339),
			}),
		),
	}
}

// Cancel transitions the task to canceled. Terminal tasks cannot be
// canceled again.
func Cancel(t *a2a.Task) error {
	if t.Status.State.IsTerminal() {
		return ErrTerminal
	}
	t.SetState(a2a.TaskStateCanceled)
	return nil
}

// Fail marks the task failed after an upstream error.
func Fail(t *a2a.Task) {
	t.SetState(a2a.TaskStateFailed)
}

// Continuable reports whether a task may accept another caller message.
func Continuable(t *a2a.Task) bool {
	return !t.Status.State.IsTerminal()
}
