// Command solver-mcp exposes the Turnstile solver API as an MCP stdio
// server, so agent frameworks can request tokens as a tool call.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// solveRequest mirrors the solver API request model.
type solveRequest struct {
	URL       string `json:"url"`
	SiteKey   string `json:"sitekey"`
	Action    string `json:"action,omitempty"`
	CData     string `json:"cdata,omitempty"`
	Invisible bool   `json:"invisible,omitempty"`
}

// solveResponse mirrors the solver API response model.
type solveResponse struct {
	Success bool `json:"success"`
	Result  *struct {
		Status         string  `json:"status"`
		Token          string  `json:"token"`
		ElapsedSeconds float64 `json:"elapsed_seconds"`
		Attempts       int     `json:"attempts"`
		Reason         string  `json:"reason"`
	} `json:"result"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	apiURL := os.Getenv("SOLVER_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("SOLVER_API_KEY")

	s := server.NewMCPServer(
		"turnstile-solver",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	solveTool := mcp.NewTool("solve_turnstile",
		mcp.WithDescription("Solve a Cloudflare Turnstile challenge for a target page and site key, returning the response token."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL where Turnstile is to be validated"),
		),
		mcp.WithString("sitekey",
			mcp.Required(),
			mcp.Description("The Turnstile site key"),
		),
		mcp.WithString("action",
			mcp.Description("Optional data-action value passed to the widget"),
		),
		mcp.WithString("cdata",
			mcp.Description("Optional data-cdata value passed to the widget"),
		),
		mcp.WithBoolean("invisible",
			mcp.Description("Set when the site key is an invisible-mode key"),
		),
	)
	s.AddTool(solveTool, handleSolve(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleSolve(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}
		sitekey, err := request.RequireString("sitekey")
		if err != nil {
			return mcp.NewToolResultError("sitekey is required"), nil
		}

		reqBody := solveRequest{
			URL:       url,
			SiteKey:   sitekey,
			Action:    request.GetString("action", ""),
			CData:     request.GetString("cdata", ""),
			Invisible: request.GetBool("invisible", false),
		}

		body, err := json.Marshal(reqBody)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to marshal request: %v", err)), nil
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+"/api/v1/solve", bytes.NewReader(body))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to create request: %v", err)), nil
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if apiKey != "" {
			httpReq.Header.Set("X-API-Key", apiKey)
		}

		resp, err := client.Do(httpReq)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to read response: %v", err)), nil
		}

		var solveResp solveResponse
		if err := json.Unmarshal(respBody, &solveResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !solveResp.Success {
			if solveResp.Error != nil {
				return mcp.NewToolResultError(fmt.Sprintf("solve failed: %s (%s)", solveResp.Error.Message, solveResp.Error.Code)), nil
			}
			if solveResp.Result != nil {
				return mcp.NewToolResultError(fmt.Sprintf("solve failed: %s", solveResp.Result.Reason)), nil
			}
			return mcp.NewToolResultError("solve failed"), nil
		}

		out, _ := json.Marshal(solveResp.Result)
		return mcp.NewToolResultText(string(out)), nil
	}
}
