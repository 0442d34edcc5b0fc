// Package fimcp is a client for the Fi Money MCP server, the source of
// the financial data every analysis starts from. The server speaks
// JSON-RPC 2.0 over a streamable HTTP endpoint and scopes data to a
// session identified by the Mcp-Session-Id header.
package fimcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"

	"finsight/internal/adapters/config"
	"finsight/pkg/errors"
	"finsight/pkg/logger"
)

// Tool names exposed by the MCP server.
const (
	ToolNetWorth     = "fetch_net_worth"
	ToolBankTxns     = "fetch_bank_transactions"
	ToolMFTxns       = "fetch_mutual_fund_transactions"
	ToolEPFDetails   = "fetch_epf_details"
	ToolCreditReport = "fetch_credit_report"
)

// Client talks to a Fi MCP server. A session ID is minted lazily and
// rotated when the server asks for a fresh login.
type Client struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger

	mu        sync.Mutex
	sessionID string
}

// NewClient creates a Fi MCP client from config.
func NewClient(cfg config.FiMCPConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     logger.Get().With("component", "fimcp_client"),
	}
}

type rpcRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int            `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

type rpcResponse struct {
	Result *rpcResult `json:"result"`
	Error  *rpcError  `json:"error"`
}

type rpcResult struct {
	Content []rpcContent `json:"content"`
}

type rpcContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// FetchNetWorth returns the aggregate net worth snapshot.
func (c *Client) FetchNetWorth(ctx context.Context) (map[string]any, error) {
	return c.CallTool(ctx, ToolNetWorth)
}

// FetchBankTransactions returns recent bank transactions.
func (c *Client) FetchBankTransactions(ctx context.Context) (map[string]any, error) {
	return c.CallTool(ctx, ToolBankTxns)
}

// FetchMutualFundTransactions returns mutual fund transaction history.
func (c *Client) FetchMutualFundTransactions(ctx context.Context) (map[string]any, error) {
	return c.CallTool(ctx, ToolMFTxns)
}

// FetchEPFDetails returns provident fund account details.
func (c *Client) FetchEPFDetails(ctx context.Context) (map[string]any, error) {
	return c.CallTool(ctx, ToolEPFDetails)
}

// FetchCreditReport returns the credit report summary.
func (c *Client) FetchCreditReport(ctx context.Context) (map[string]any, error) {
	return c.CallTool(ctx, ToolCreditReport)
}

// CallTool invokes an MCP tool and decodes its text payload as JSON.
// When the server responds with a login_url the session has expired;
// the session is rotated and the call retried once.
func (c *Client) CallTool(ctx context.Context, tool string) (map[string]any, error) {
	payload, err := c.callOnce(ctx, tool)
	if err != nil {
		return nil, err
	}

	if _, needsLogin := payload["login_url"]; needsLogin {
		c.rotateSession()
		c.log.Infof("Session expired for tool %s, retrying with fresh session", tool)
		payload, err = c.callOnce(ctx, tool)
		if err != nil {
			return nil, err
		}
		if _, stillLogin := payload["login_url"]; stillLogin {
			return nil, errors.Wrapf(errors.ErrExternal, "tool %s requires interactive login", tool)
		}
	}

	return payload, nil
}

func (c *Client) callOnce(ctx context.Context, tool string) (map[string]any, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params: map[string]any{
			"name":      tool,
			"arguments": map[string]any{},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "marshal rpc request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mcp/stream", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build rpc request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Mcp-Session-Id", c.session())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCollectionFailed, "call tool %s: %v", tool, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "read response for tool %s", tool)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(errors.ErrCollectionFailed, "tool %s returned HTTP %d", tool, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return nil, errors.Wrapf(err, "decode rpc response for tool %s", tool)
	}
	if rpcResp.Error != nil {
		return nil, errors.Wrapf(errors.ErrCollectionFailed, "tool %s: rpc error %d: %s", tool, rpcResp.Error.Code, rpcResp.Error.Message)
	}
	if rpcResp.Result == nil || len(rpcResp.Result.Content) == 0 {
		return nil, errors.Wrapf(errors.ErrCollectionFailed, "tool %s returned no content", tool)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(rpcResp.Result.Content[0].Text), &payload); err != nil {
		return nil, errors.Wrapf(err, "parse payload for tool %s", tool)
	}

	return payload, nil
}

func (c *Client) session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID == "" {
		c.sessionID = fmt.Sprintf("mcp-session-%s", uuid.NewString())
	}
	return c.sessionID
}

func (c *Client) rotateSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = fmt.Sprintf("mcp-session-%s", uuid.NewString())
}
