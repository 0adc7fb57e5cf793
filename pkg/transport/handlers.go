package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	triagent "github.com/outshift/triagent"
	"github.com/outshift/triagent/pkg/a2a"
	"github.com/outshift/triagent/pkg/task"
	"github.com/outshift/triagent/pkg/tbac"
)

// CardInfo holds the deployment-specific fields of the agent card.
type CardInfo struct {
	PublicURL string
}

// handlers serves the discovery, health, and documentation endpoints.
type handlers struct {
	store *task.Store
	gate  *tbac.Gate
	info  CardInfo
}

// agentCard builds the discovery document. The authorization status is
// computed per request so the card reflects the live gate posture.
func (h *handlers) agentCard(w http.ResponseWriter, r *http.Request) {
	url := h.info.PublicURL
	if url == "" {
		url = "http://" + r.Host
	}

	card := a2a.AgentCard{
		Name:               "Medical Triage Agent A2A service",
		Description:        "A2A service for an AI agent that performs medical symptom triage and assessment using professional medical protocols",
		URL:                url,
		Version:            triagent.Version,
		ProtocolVersion:    "0.2.5",
		PreferredTransport: "JSONRPC",
		Capabilities: a2a.AgentCapabilities{
			Streaming:              false,
			PushNotifications:      false,
			StateTransitionHistory: false,
		},
		DefaultInputModes:  []string{"text/plain", "application/json"},
		DefaultOutputModes: []string{"text/plain", "application/json"},
		Skills: []a2a.AgentSkill{
			{
				ID:          "medical-triage",
				Name:        "Medical Symptom Triage",
				Description: "Performs comprehensive medical symptom assessment and triage using clinical protocols",
				Tags:        []string{"healthcare", "triage", "medical", "symptoms", "diagnosis"},
				Examples: []string{
					"I have chest pain and shortness of breath",
					"My child has a fever and headache",
					"I'm experiencing severe abdominal pain",
				},
			},
		},
	}

	status := h.gate.Status()
	if status.Enabled {
		card.TBAC = &status
	}

	writeJSON(w, http.StatusOK, card)
}

// health reports liveness, the active task count, and the gate posture.
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"status":       "healthy",
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"version":      triagent.Version,
		"active_tasks": h.store.Count(),
	}

	status := h.gate.Status()
	if status.Enabled {
		payload["tbac"] = status
	}

	writeJSON(w, http.StatusOK, payload)
}

// docs lists the HTTP surface and the supported RPC methods.
func (h *handlers) docs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"title":        "Medical Triage A2A Service",
		"description":  "Agent-to-Agent protocol service for medical symptom triage",
		"tbac_enabled": h.gate.Status().Enabled,
		"endpoints": map[string]string{
			"/.well-known/agent-card.json": "Agent discovery card",
			"/health":                      "Health check",
			"/docs":                        "This documentation",
			"/":                            "JSON-RPC 2.0 endpoint for A2A communication",
		},
		"supported_methods": []string{
			"message/send",
			"tasks/get",
			"tasks/cancel",
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
