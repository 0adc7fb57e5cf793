package task

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/outshift/triagent/pkg/a2a"
)

func TestStoreUpdateNotFound(t *testing.T) {
	s := NewStore()
	err := s.Update("missing", func(*a2a.Task) error { return nil })
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSnapshotHistoryLimit(t *testing.T) {
	s := NewStore()
	tk := a2a.NewTask("")
	for i := 0; i < 20; i++ {
		tk.AppendHistory(a2a.Message{
			Role:      a2a.MessageRoleUser,
			Parts:     []a2a.Part{a2a.TextPart(fmt.Sprintf("turn %d", i))},
			MessageID: fmt.Sprintf("m%d", i),
		})
	}
	s.Put(tk)

	snap, err := s.Snapshot(tk.ID, 5)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.History) != 5 {
		t.Fatalf("history length = %d, want 5", len(snap.History))
	}
	if got := snap.History[0].Parts[0].Text; got != "turn 15" {
		t.Errorf("oldest kept = %q, want most recent five", got)
	}

	// Stored record must keep the full history.
	full, err := s.Snapshot(tk.ID, 0)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(full.History) != 20 {
		t.Errorf("stored history length = %d, want 20", len(full.History))
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore()
	tk := a2a.NewTask("")
	tk.Metadata[MetaSurveyID] = "sv-1"
	s.Put(tk)

	snap, err := s.Snapshot(tk.ID, 0)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	snap.Metadata[MetaSurveyID] = "mutated"
	snap.History = append(snap.History, a2a.Message{MessageID: "rogue"})

	again, _ := s.Snapshot(tk.ID, 0)
	if again.Metadata[MetaSurveyID] != "sv-1" {
		t.Error("snapshot mutation leaked into stored metadata")
	}
	if len(again.History) != 0 {
		t.Error("snapshot mutation leaked into stored history")
	}
}

func TestUpdateSerializesSameTask(t *testing.T) {
	s := NewStore()
	tk := a2a.NewTask("")
	s.Put(tk)

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = s.Update(tk.ID, func(t *a2a.Task) error {
				t.AppendHistory(a2a.Message{MessageID: fmt.Sprintf("m%d", n)})
				return nil
			})
		}(i)
	}
	wg.Wait()

	snap, _ := s.Snapshot(tk.ID, 0)
	if len(snap.History) != writers {
		t.Errorf("history length = %d, want %d", len(snap.History), writers)
	}
}

func TestMachineAdvance(t *testing.T) {
	tests := []struct {
		surveyState  string
		wantState    a2a.TaskState
		needsSummary bool
	}{
		{SurveyInProgress, a2a.TaskStateInputRequired, false},
		{SurveyPresentResult, a2a.TaskStateCompleted, true},
		{SurveyPostResult, a2a.TaskStateCompleted, false},
		{"something_new", a2a.TaskStateInputRequired, false},
		{"", a2a.TaskStateInputRequired, false},
	}

	for _, tt := range tests {
		t.Run(tt.surveyState, func(t *testing.T) {
			tk := a2a.NewTask("")
			got := Advance(tk, tt.surveyState)
			if tk.Status.State != tt.wantState {
				t.Errorf("state = %s, want %s", tk.Status.State, tt.wantState)
			}
			if got != tt.needsSummary {
				t.Errorf("needsSummary = %v, want %v", got, tt.needsSummary)
			}
			if tk.Metadata[MetaTriageState] != tt.surveyState {
				t.Errorf("metadata state = %v", tk.Metadata[MetaTriageState])
			}
		})
	}
}

func TestCompleteDefaults(t *testing.T) {
	tk := a2a.NewTask("")
	Complete(tk, "", "", "")

	if len(tk.Artifacts) != 1 {
		t.Fatalf("artifacts = %d, want 1", len(tk.Artifacts))
	}
	art := tk.Artifacts[0]
	if art.Name != "Medical Triage Assessment" {
		t.Errorf("name = %q", art.Name)
	}
	data := art.Parts[0].Data
	if data["urgency_level"] != "standard" {
		t.Errorf("urgency_level = %v", data["urgency_level"])
	}
	if data["doctor_type"] != "general practitioner" {
		t.Errorf("doctor_type = %v", data["doctor_type"])
	}
	if data["notes"] != "Triage assessment completed" {
		t.Errorf("notes = %v", data["notes"])
	}
	if data["completed_at"] == "" {
		t.Error("completed_at missing")
	}
}

func TestCancel(t *testing.T) {
	tk := a2a.NewTask("")
	if err := Cancel(tk); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if tk.Status.State != a2a.TaskStateCanceled {
		t.Errorf("state = %s", tk.Status.State)
	}

	if err := Cancel(tk); !errors.Is(err, ErrTerminal) {
		t.Errorf("second cancel err = %v, want ErrTerminal", err)
	}

	done := a2a.NewTask("")
	done.SetState(a2a.TaskStateCompleted)
	if err := Cancel(done); !errors.Is(err, ErrTerminal) {
		t.Errorf("cancel completed err = %v, want ErrTerminal", err)
	}
}
