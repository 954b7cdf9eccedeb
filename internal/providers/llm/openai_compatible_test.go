package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sandevgo/opsbot/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func TestChat_PlainTextReply(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"hello there"}}]}`)
	defer srv.Close()

	p := NewOpenAI(srv.URL, "key", "test-model")
	msg, err := p.Chat(context.Background(), []core.Message{{Role: core.RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, core.RoleAssistant, msg.Role)
	assert.Equal(t, "hello there", msg.Content)
	assert.Empty(t, msg.ToolCalls)
}

func TestChat_ToolCallReply(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{
		"choices":[{"message":{
			"role":"assistant",
			"content":"",
			"tool_calls":[
				{"id":"call_a","type":"function","function":{"name":"read_file","arguments":"{\"path\":\"a.txt\"}"}},
				{"id":"call_b","type":"function","function":{"name":"system_info","arguments":"{}"}}
			]
		}}]
	}`)
	defer srv.Close()

	p := NewOpenAI(srv.URL, "key", "test-model")
	msg, err := p.Chat(context.Background(), []core.Message{{Role: core.RoleUser, Content: "inspect"}}, nil)
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 2)
	assert.Equal(t, "call_a", msg.ToolCalls[0].ID)
	assert.Equal(t, "read_file", msg.ToolCalls[0].Function.Name)
	assert.Equal(t, `{"path":"a.txt"}`, msg.ToolCalls[0].Function.Arguments)
	assert.Equal(t, "call_b", msg.ToolCalls[1].ID)
}

func TestChat_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"auth rejected", http.StatusUnauthorized, `{"error":"bad key"}`, core.ErrProviderAuth},
		{"forbidden", http.StatusForbidden, `{"error":"no access"}`, core.ErrProviderAuth},
		{"backend down", http.StatusBadGateway, `upstream broke`, core.ErrProviderUnreachable},
		{"bad request", http.StatusBadRequest, `{"error":"bad payload"}`, core.ErrProviderProtocol},
		{"garbage body", http.StatusOK, `this is not json`, core.ErrProviderProtocol},
		{"empty choices", http.StatusOK, `{"choices":[]}`, core.ErrProviderProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.status, tt.body)
			defer srv.Close()

			p := NewOpenAI(srv.URL, "key", "test-model")
			_, err := p.Chat(context.Background(), []core.Message{{Role: core.RoleUser, Content: "hi"}}, nil)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestChat_ConnectionRefused(t *testing.T) {
	// Port 1 is never listening.
	p := NewOpenAI("http://127.0.0.1:1", "key", "test-model")
	_, err := p.Chat(context.Background(), []core.Message{{Role: core.RoleUser, Content: "hi"}}, nil)
	assert.ErrorIs(t, err, core.ErrProviderUnreachable)
}

func TestChat_AdvertisesTools(t *testing.T) {
	var captured struct {
		Tools []core.Tool `json:"tools"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	tools := []core.Tool{{
		Type: "function",
		Function: core.Function{
			Name:       "read_file",
			Parameters: json.RawMessage(`{"type":"object"}`),
		},
	}}

	p := NewLMStudio(srv.URL, "local-model")
	_, err := p.Chat(context.Background(), []core.Message{{Role: core.RoleUser, Content: "hi"}}, tools)
	require.NoError(t, err)
	require.Len(t, captured.Tools, 1)
	assert.Equal(t, "read_file", captured.Tools[0].Function.Name)
}
