package transport

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/outshift/triagent/pkg/a2a"
)

func getJSON(t *testing.T, url string, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestAgentCard(t *testing.T) {
	ts := newTestService(t, nil)

	var card a2a.AgentCard
	getJSON(t, ts.srv.URL+"/.well-known/agent-card.json", &card)

	if card.Name == "" || card.Version == "" {
		t.Errorf("card = %+v", card)
	}
	if card.Capabilities.Streaming {
		t.Error("streaming must not be advertised")
	}
	if len(card.Skills) != 1 || card.Skills[0].ID != "medical-triage" {
		t.Errorf("skills = %+v", card.Skills)
	}
	if card.TBAC != nil {
		t.Error("disabled gate must not appear on the card")
	}
}

func TestHealth(t *testing.T) {
	ts := newTestService(t, nil)

	ts.rpc(t, "message/send", sendParams("checkup", ""))

	var health map[string]any
	getJSON(t, ts.srv.URL+"/health", &health)

	if health["status"] != "healthy" {
		t.Errorf("status = %v", health["status"])
	}
	if health["active_tasks"] != float64(1) {
		t.Errorf("active_tasks = %v", health["active_tasks"])
	}
	if _, present := health["tbac"]; present {
		t.Error("disabled gate must not appear in health")
	}
}

func TestDocs(t *testing.T) {
	ts := newTestService(t, nil)

	var docs map[string]any
	getJSON(t, ts.srv.URL+"/docs", &docs)

	methods, _ := docs["supported_methods"].([]any)
	if len(methods) != 3 {
		t.Errorf("supported_methods = %v", methods)
	}
}
