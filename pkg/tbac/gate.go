package tbac

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/outshift/triagent/pkg/a2a"
	"github.com/outshift/triagent/pkg/config"
)

// Mode is the gate's posture, modeled explicitly instead of inferred from
// which credentials happen to be blank.
type Mode string

const (
	// ModeDisabled means no credentials are configured; all checks pass.
	ModeDisabled Mode = "disabled"

	// ModePending means credentials exist but the exchange has not run.
	ModePending Mode = "pending"

	// ModeAuthorized means both directions of the exchange succeeded.
	ModeAuthorized Mode = "authorized"

	// ModeUnauthorized means the exchange ran and at least one direction
	// was denied or failed.
	ModeUnauthorized Mode = "unauthorized"
)

// Direction names which side of the exchange a check covers.
type Direction string

const (
	// DirectionInbound guards the calling agent sending messages to this
	// service.
	DirectionInbound Direction = "receive_message"

	// DirectionOutbound guards this service answering the calling agent.
	DirectionOutbound Direction = "send_response"
)

// AuthorizationError reports a denied gate check.
type AuthorizationError struct {
	Direction Direction
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("authorization required for %s", e.Direction)
}

// Gate performs and caches the bidirectional authorization exchange.
// Tokens live for the process lifetime; a failed exchange is never
// retried automatically.
type Gate struct {
	cfg           config.TBACConfig
	agentClient   IdentityClient
	serviceClient IdentityClient

	mu                sync.RWMutex
	ran               bool
	agentAuthorized   bool
	serviceAuthorized bool
}

// NewGate creates a gate. When credentials are incomplete the gate stays
// disabled and every check passes.
func NewGate(cfg config.TBACConfig) *Gate {
	g := &Gate{cfg: cfg}
	if cfg.Enabled() {
		g.agentClient = NewIdentityClient(cfg.IdentityServiceURL, cfg.AgentAPIKey)
		g.serviceClient = NewIdentityClient(cfg.IdentityServiceURL, cfg.ServiceAPIKey)
	}
	return g
}

// NewGateWithClients injects identity clients, for tests.
func NewGateWithClients(cfg config.TBACConfig, agentClient, serviceClient IdentityClient) *Gate {
	return &Gate{cfg: cfg, agentClient: agentClient, serviceClient: serviceClient}
}

// Authorize runs both directions of the exchange. Errors are absorbed
// into the unauthorized state rather than propagated: the service keeps
// running and requests are denied per-check.
func (g *Gate) Authorize(ctx context.Context) {
	if g.agentClient == nil || g.serviceClient == nil {
		slog.Warn("TBAC disabled: missing credentials")
		return
	}

	agentOK := g.authorizeDirection(ctx, "agent->service", g.agentClient, g.serviceClient, g.cfg.ServiceID)
	serviceOK := g.authorizeDirection(ctx, "service->agent", g.serviceClient, g.agentClient, g.cfg.AgentID)

	g.mu.Lock()
	g.ran = true
	g.agentAuthorized = agentOK
	g.serviceAuthorized = serviceOK
	g.mu.Unlock()

	if agentOK && serviceOK {
		slog.Info("TBAC authorization successful")
	} else {
		slog.Warn("TBAC authorization failed, requests will be denied",
			"agent_authorized", agentOK,
			"service_authorized", serviceOK)
	}
}

// authorizeDirection obtains a token as holder and has the verifier
// authorize it.
func (g *Gate) authorizeDirection(ctx context.Context, name string, holder, verifier IdentityClient, targetID string) bool {
	token, err := holder.AccessToken(ctx, targetID)
	if err != nil {
		slog.Error("TBAC token acquisition failed", "direction", name, "error", err)
		return false
	}

	logTokenClaims(name, token)

	ok, err := verifier.Authorize(ctx, token)
	if err != nil {
		slog.Error("TBAC token verification failed", "direction", name, "error", err)
		return false
	}
	if !ok {
		slog.Warn("TBAC token rejected", "direction", name)
	}
	return ok
}

// Mode returns the gate's current posture.
func (g *Gate) Mode() Mode {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.modeLocked()
}

// CheckInbound verifies the calling agent may send messages here.
func (g *Gate) CheckInbound() error {
	return g.check(DirectionInbound)
}

// CheckOutbound verifies this service may answer the calling agent.
func (g *Gate) CheckOutbound() error {
	return g.check(DirectionOutbound)
}

func (g *Gate) check(direction Direction) error {
	if !g.cfg.Enabled() {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	authorized := g.agentAuthorized
	if direction == DirectionOutbound {
		authorized = g.serviceAuthorized
	}
	if !g.ran || !authorized {
		return &AuthorizationError{Direction: direction}
	}
	return nil
}

// Status reports the gate posture for the agent card and health endpoint.
func (g *Gate) Status() a2a.TBACStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return a2a.TBACStatus{
		Enabled:           g.cfg.Enabled(),
		Mode:              string(g.modeLocked()),
		AgentAuthorized:   !g.cfg.Enabled() || g.agentAuthorized,
		ServiceAuthorized: !g.cfg.Enabled() || g.serviceAuthorized,
	}
}

func (g *Gate) modeLocked() Mode {
	if !g.cfg.Enabled() {
		return ModeDisabled
	}
	switch {
	case !g.ran:
		return ModePending
	case g.agentAuthorized && g.serviceAuthorized:
		return ModeAuthorized
	default:
		return ModeUnauthorized
	}
}
