package a2a

// ============================================================================
// AGENT CARD - Discovery Metadata
// ============================================================================

// AgentCard is the discovery document served at the well-known path. It
// advertises the agent's identity, transport, skills, and the live
// authorization status of its protected resources.
type AgentCard struct {
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	URL                string            `json:"url"`
	Version            string            `json:"version"`
	ProtocolVersion    string            `json:"protocolVersion"`
	PreferredTransport string            `json:"preferredTransport,omitempty"`
	Capabilities       AgentCapabilities `json:"capabilities"`
	DefaultInputModes  []string          `json:"defaultInputModes"`
	DefaultOutputModes []string          `json:"defaultOutputModes"`
	Skills             []AgentSkill      `json:"skills"`
	TBAC               *TBACStatus       `json:"tbac,omitempty"`
}

// AgentCapabilities declares optional protocol features.
type AgentCapabilities struct {
	Streaming              bool `json:"streaming"`
	PushNotifications      bool `json:"pushNotifications"`
	StateTransitionHistory bool `json:"stateTransitionHistory"`
}

// AgentSkill describes one capability advertised by the agent.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}

// TBACStatus reports the current task-based access control posture so
// callers can see whether the service operates open or gated.
type TBACStatus struct {
	Enabled           bool   `json:"enabled"`
	Mode              string `json:"mode"`
	AgentAuthorized   bool   `json:"agentAuthorized"`
	ServiceAuthorized bool   `json:"serviceAuthorized"`
}
