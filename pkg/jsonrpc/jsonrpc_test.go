package jsonrpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestDecode(t *testing.T) {
	raw := `{"jsonrpc":"2.0","id":"req-1","method":"message/send","params":{"message":{}}}`

	var req Request
	require.NoError(t, json.Unmarshal([]byte(raw), &req))
	assert.Equal(t, Version, req.JSONRPC)
	assert.Equal(t, `"req-1"`, string(req.ID))
	assert.Equal(t, "message/send", req.Method)
	assert.JSONEq(t, `{"message":{}}`, string(req.Params))
}

func TestRequestIDPresence(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		hasID bool
	}{
		{"string id", `{"jsonrpc":"2.0","id":"a","method":"tasks/get"}`, true},
		{"numeric id", `{"jsonrpc":"2.0","id":7,"method":"tasks/get"}`, true},
		{"null id", `{"jsonrpc":"2.0","id":null,"method":"tasks/get"}`, true},
		{"absent id", `{"jsonrpc":"2.0","method":"tasks/get"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req Request
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &req))
			assert.Equal(t, tt.hasID, req.HasID())
		})
	}
}

func TestResponseShape(t *testing.T) {
	resp := NewResponse("req-1", map[string]string{"ok": "yes"})
	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"req-1","result":{"ok":"yes"}}`, string(out))
}

func TestErrorResponseShape(t *testing.T) {
	resp := NewErrorResponse(nil, NewError(CodeTaskNotFound, "Task not found", nil))
	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32001,"message":"Task not found"}}`, string(out))
}

func TestErrorCodesAreDistinct(t *testing.T) {
	codes := []int{
		CodeParseError,
		CodeInvalidRequest,
		CodeMethodNotFound,
		CodeInvalidParams,
		CodeInternalError,
		CodeTaskNotFound,
		CodeTaskNotContinuable,
		CodeUnauthorized,
	}
	seen := map[int]bool{}
	for _, c := range codes {
		assert.False(t, seen[c], "duplicate code %d", c)
		seen[c] = true
	}
	// Authorization failures carry their own code.
	assert.NotEqual(t, CodeTaskNotFound, CodeUnauthorized)
}
