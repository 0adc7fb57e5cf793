package a2a

import (
	"encoding/json"
	"testing"
)

func TestPartUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		check   func(t *testing.T, p Part)
	}{
		{
			name:  "text part",
			input: `{"kind":"text","text":"hello"}`,
			check: func(t *testing.T, p Part) {
				if p.Kind != PartKindText || p.Text != "hello" {
					t.Errorf("got %+v", p)
				}
			},
		},
		{
			name:  "empty text is valid",
			input: `{"kind":"text","text":""}`,
			check: func(t *testing.T, p Part) {
				if p.Kind != PartKindText || p.Text != "" {
					t.Errorf("got %+v", p)
				}
			},
		},
		{
			name:  "data part",
			input: `{"kind":"data","data":{"urgency_level":"standard"}}`,
			check: func(t *testing.T, p Part) {
				if p.Kind != PartKindData {
					t.Fatalf("kind = %q", p.Kind)
				}
				if p.Data["urgency_level"] != "standard" {
					t.Errorf("data = %v", p.Data)
				}
			},
		},
		{
			name:    "missing kind",
			input:   `{"text":"hello"}`,
			wantErr: true,
		},
		{
			name:    "unknown kind",
			input:   `{"kind":"file","uri":"http://example.com"}`,
			wantErr: true,
		},
		{
			name:    "text part without text",
			input:   `{"kind":"text"}`,
			wantErr: true,
		},
		{
			name:    "data part without data",
			input:   `{"kind":"data"}`,
			wantErr: true,
		},
		{
			name:    "data part with non-object data",
			input:   `{"kind":"data","data":[1,2]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Part
			err := json.Unmarshal([]byte(tt.input), &p)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			tt.check(t, p)
		})
	}
}

func TestMessageText(t *testing.T) {
	msg := Message{Parts: []Part{
		DataPart(map[string]any{"x": 1}),
		TextPart("first"),
		TextPart(" second"),
	}}
	if got := msg.Text(); got != "first second" {
		t.Errorf("Text() = %q", got)
	}
	if got := (Message{}).Text(); got != "" {
		t.Errorf("empty message Text() = %q", got)
	}
}

func TestTaskStateIsTerminal(t *testing.T) {
	terminal := []TaskState{TaskStateCompleted, TaskStateFailed, TaskStateCanceled, TaskStateRejected}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	open := []TaskState{TaskStateSubmitted, TaskStateWorking, TaskStateInputRequired}
	for _, s := range open {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestNewTask(t *testing.T) {
	task := NewTask("")
	if task.ID == "" || task.ContextID == "" {
		t.Fatal("ids must be generated")
	}
	if task.Status.State != TaskStateSubmitted {
		t.Errorf("state = %s", task.Status.State)
	}
	if task.Kind != "task" {
		t.Errorf("kind = %q", task.Kind)
	}

	task2 := NewTask("ctx-1")
	if task2.ContextID != "ctx-1" {
		t.Errorf("contextId = %q", task2.ContextID)
	}
}
