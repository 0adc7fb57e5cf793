// Package triagent provides an A2A-native medical triage task service.
//
// Triagent exposes a medical triage conversation engine over the A2A
// (Agent-to-Agent) protocol. Clients drive a triage interview through
// JSON-RPC 2.0 calls (message/send, tasks/get, tasks/cancel) and receive
// Task objects that track the interview from first complaint to the final
// assessment artifact.
//
// # Quick Start
//
// Install:
//
//	go install github.com/outshift/triagent/cmd/triagent@latest
//
// Start the server:
//
//	triagent serve --config config.yaml
//
// Send the first message:
//
//	curl -X POST http://localhost:8000/ -d '{
//	  "jsonrpc": "2.0", "id": 1, "method": "message/send",
//	  "params": {"message": {"parts": [{"kind": "text",
//	    "text": "I am a 34 year old male with a sore throat"}]}}
//	}'
//
// # Architecture
//
//	Client → JSON-RPC dispatcher → TBAC gate → task store → triage bridge
//
// Every request passes through an optional token-based access control
// (TBAC) gate before reaching the task layer. Task state is derived from
// the upstream triage engine's survey state, and each task is locked
// individually so concurrent continuations never interleave.
//
// Key packages:
//
//	import (
//	    "github.com/outshift/triagent/pkg/transport"
//	    "github.com/outshift/triagent/pkg/task"
//	    "github.com/outshift/triagent/pkg/tbac"
//	    "github.com/outshift/triagent/pkg/triage"
//	)
package triagent
