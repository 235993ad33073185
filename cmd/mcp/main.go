// Command mcp exposes the orchestrator as an MCP server over stdio, so
// MCP clients can send prompts and inspect available models.
//
// API keys are read from ALLM_<PROVIDER>_API_KEY environment variables
// (a .env file is honored).
package main

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/allmhq/allm"
	"github.com/allmhq/allm/backend"
	"github.com/allmhq/allm/config"
)

func main() {
	godotenv.Load()

	// stdout carries the MCP protocol; logs must stay off it.
	zlog := zap.NewNop()

	b := backend.New(backend.Config{Logger: zlog})
	defer func() {
		b.Shutdown()
	}()

	if specs := config.APIKeysFromEnv(); len(specs) > 0 {
		if ack, err := b.SetAPIKeys(specs); err == nil {
			ack.Await(context.Background())
		}
	}

	s := server.NewMCPServer(
		"allm",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("send_prompt",
			mcp.WithDescription("Send a prompt to an LLM provider, with automatic failover"),
			mcp.WithString("prompt",
				mcp.Required(),
				mcp.Description("The prompt text"),
			),
			mcp.WithString("model",
				mcp.Description("Target model identifier; the owning provider is inferred from its name"),
			),
		),
		sendPromptHandler(b),
	)

	s.AddTool(
		mcp.NewTool("list_models",
			mcp.WithDescription("List models available from every configured provider"),
		),
		listModelsHandler(b),
	)

	if err := server.ServeStdio(s); err != nil {
		log.Fatal(err)
	}
}

func sendPromptHandler(b *backend.Backend) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := req.RequireString("prompt")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		model := req.GetString("model", "")

		future, err := b.SendPrompt(prompt, model)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		result, err := future.Await(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(result), nil
	}
}

func listModelsHandler(b *backend.Backend) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		future, err := b.GetModelLists()
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		lists, err := future.Await(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		providers := make([]allm.Provider, 0, len(lists))
		for p := range lists {
			providers = append(providers, p)
		}
		sort.Slice(providers, func(i, j int) bool { return providers[i] < providers[j] })

		var sb strings.Builder
		for _, p := range providers {
			pm := lists[p]
			if pm.Err != nil {
				fmt.Fprintf(&sb, "%s: unavailable (%v)\n", p, pm.Err)
				continue
			}
			fmt.Fprintf(&sb, "%s: %s\n", p, strings.Join(pm.Models, ", "))
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}
