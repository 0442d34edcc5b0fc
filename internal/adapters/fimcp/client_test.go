package fimcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finsight/internal/adapters/config"
)

func newTestClient(url string) *Client {
	return NewClient(config.FiMCPConfig{
		BaseURL: url,
		Timeout: 5 * time.Second,
	})
}

func toolResponse(t *testing.T, payload any) []byte {
	t.Helper()
	text, err := json.Marshal(payload)
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"result": map[string]any{
			"content": []map[string]any{{"type": "text", "text": string(text)}},
		},
	})
	require.NoError(t, err)
	return body
}

func TestCallToolDecodesPayload(t *testing.T) {
	var gotMethod, gotTool, gotSession string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mcp/stream", r.URL.Path)
		gotSession = r.Header.Get("Mcp-Session-Id")

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotMethod = req["method"].(string)
		gotTool = req["params"].(map[string]any)["name"].(string)

		w.Write(toolResponse(t, map[string]any{"netWorthResponse": map[string]any{"totalNetWorthValue": 120000}}))
	}))
	defer srv.Close()

	payload, err := newTestClient(srv.URL).FetchNetWorth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tools/call", gotMethod)
	assert.Equal(t, ToolNetWorth, gotTool)
	assert.NotEmpty(t, gotSession)
	assert.Contains(t, payload, "netWorthResponse")
}

func TestCallToolRotatesSessionOnLoginURL(t *testing.T) {
	var sessions []string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessions = append(sessions, r.Header.Get("Mcp-Session-Id"))
		if len(sessions) == 1 {
			w.Write(toolResponse(t, map[string]any{"login_url": "http://fi.example/login"}))
			return
		}
		w.Write(toolResponse(t, map[string]any{"creditReport": map[string]any{"score": 780}}))
	}))
	defer srv.Close()

	payload, err := newTestClient(srv.URL).FetchCreditReport(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.NotEqual(t, sessions[0], sessions[1])
	assert.Contains(t, payload, "creditReport")
}

func TestCallToolGivesUpAfterSecondLoginPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(toolResponse(t, map[string]any{"login_url": "http://fi.example/login"}))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchEPFDetails(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interactive login")
}

func TestCallToolRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      1,
			"error":   map[string]any{"code": -32602, "message": "unknown tool"},
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CallTool(context.Background(), "fetch_bogus")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tool")
}

func TestCallToolHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).FetchBankTransactions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 502")
}
