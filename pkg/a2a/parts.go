package a2a

import (
	"encoding/json"
	"fmt"
)

// Part kinds. The part union is closed: anything else is rejected at
// decode time so malformed payloads surface as invalid params instead of
// silently empty turns.
const (
	PartKindText = "text"
	PartKindData = "data"
)

// Part is one element of a message or artifact. Exactly one of Text or
// Data is meaningful, selected by Kind.
type Part struct {
	Kind string         `json:"kind"`
	Text string         `json:"text,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

// DataPart builds a structured data part.
func DataPart(data map[string]any) Part {
	return Part{Kind: PartKindData, Data: data}
}

// UnmarshalJSON validates the kind discriminator and that the selected
// payload field is present.
func (p *Part) UnmarshalJSON(b []byte) error {
	type raw struct {
		Kind string          `json:"kind"`
		Text *string         `json:"text"`
		Data json.RawMessage `json:"data"`
	}
	var r raw
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	switch r.Kind {
	case PartKindText:
		if r.Text == nil {
			return fmt.Errorf("text part missing text field")
		}
		p.Kind = PartKindText
		p.Text = *r.Text
		p.Data = nil
	case PartKindData:
		if len(r.Data) == 0 {
			return fmt.Errorf("data part missing data field")
		}
		var data map[string]any
		if err := json.Unmarshal(r.Data, &data); err != nil {
			return fmt.Errorf("data part payload: %w", err)
		}
		p.Kind = PartKindData
		p.Data = data
		p.Text = ""
	case "":
		return fmt.Errorf("part missing kind discriminator")
	default:
		return fmt.Errorf("unsupported part kind %q", r.Kind)
	}
	return nil
}
