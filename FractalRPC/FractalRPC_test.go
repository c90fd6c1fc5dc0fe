package FractalRPC

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"goaetherbridge/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     interface{}     `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

func newNode(t *testing.T, results map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, ok := results[req.Method]
		if !ok {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"error":   map[string]interface{}{"code": -32601, "message": "method not found"},
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}))
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

const depositBaseUnits = "1000000000000000000000"

func messageReply(height int64, to, value string) map[string]interface{} {
	return map[string]interface{}{
		"height":   height,
		"exitCode": 0,
		"to":       to,
		"value":    value,
	}
}

func TestVerifySource_ConfirmedDeposit(t *testing.T) {
	node := newNode(t, map[string]interface{}{
		"Fractal.SearchMessage": messageReply(100, "f1vault", depositBaseUnits),
		"Fractal.ChainHead":     map[string]interface{}{"height": 111},
	})
	defer node.Close()

	a := NewAdapter(node.URL, "", 12, quietLogger())
	confirmed, err := a.VerifySource(context.Background(), "f1vault", depositBaseUnits, "bafymsg1")
	require.NoError(t, err)
	// mined at 100, head 111: exactly 12 confirmations counting inclusion
	assert.True(t, confirmed)
}

func TestVerifySource_InsufficientDepth(t *testing.T) {
	node := newNode(t, map[string]interface{}{
		"Fractal.SearchMessage": messageReply(100, "f1vault", depositBaseUnits),
		"Fractal.ChainHead":     map[string]interface{}{"height": 102},
	})
	defer node.Close()

	a := NewAdapter(node.URL, "", 12, quietLogger())
	confirmed, err := a.VerifySource(context.Background(), "f1vault", depositBaseUnits, "bafymsg1")
	require.NoError(t, err)
	assert.False(t, confirmed)
}

func TestVerifySource_WrongTarget(t *testing.T) {
	node := newNode(t, map[string]interface{}{
		"Fractal.SearchMessage": messageReply(100, "f1someoneelse", depositBaseUnits),
		"Fractal.ChainHead":     map[string]interface{}{"height": 200},
	})
	defer node.Close()

	a := NewAdapter(node.URL, "", 12, quietLogger())
	confirmed, err := a.VerifySource(context.Background(), "f1vault", depositBaseUnits, "unrelated-msg")
	assert.False(t, confirmed)
	require.Error(t, err)
	assert.False(t, types.IsTransient(err))
}

func TestVerifySource_Underfunded(t *testing.T) {
	node := newNode(t, map[string]interface{}{
		"Fractal.SearchMessage": messageReply(100, "f1vault", "1"),
		"Fractal.ChainHead":     map[string]interface{}{"height": 200},
	})
	defer node.Close()

	a := NewAdapter(node.URL, "", 12, quietLogger())
	confirmed, err := a.VerifySource(context.Background(), "f1vault", depositBaseUnits, "dust-msg")
	assert.False(t, confirmed)
	require.Error(t, err)
	assert.False(t, types.IsTransient(err))
}

func TestVerifySource_NotOnChain(t *testing.T) {
	node := newNode(t, map[string]interface{}{
		"Fractal.SearchMessage": nil,
	})
	defer node.Close()

	a := NewAdapter(node.URL, "", 12, quietLogger())
	confirmed, err := a.VerifySource(context.Background(), "f1vault", depositBaseUnits, "bafymsg1")
	require.NoError(t, err)
	assert.False(t, confirmed)
}

func TestVerifySource_RejectedMessage(t *testing.T) {
	node := newNode(t, map[string]interface{}{
		"Fractal.SearchMessage": map[string]interface{}{
			"height": 100, "exitCode": 7, "to": "f1vault", "value": depositBaseUnits,
		},
	})
	defer node.Close()

	a := NewAdapter(node.URL, "", 12, quietLogger())
	confirmed, err := a.VerifySource(context.Background(), "f1vault", depositBaseUnits, "bafymsg1")
	assert.False(t, confirmed)
	require.Error(t, err)
	assert.False(t, types.IsTransient(err))
}
