package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/sakif/snippet-runner/internal/app"
	"github.com/sakif/snippet-runner/internal/executor"
)

// maxToolOutput keeps tool answers small enough for a model's context.
const maxToolOutput = 4000

// dispatcher is the engine surface the MCP tool needs.
type dispatcher interface {
	Dispatch(ctx context.Context, req executor.ExecutionRequest) executor.ExecutionResult
}

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the code_run tool over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			eng, cleanup := app.NewEngine(cmd.Context(), cfg, newLogger(cmd.ErrOrStderr(), cfg))
			defer cleanup()

			return server.ServeStdio(newMCPServer(eng))
		},
	}
}

func newMCPServer(eng dispatcher) *server.MCPServer {
	s := server.NewMCPServer("snippet-runner", version)
	s.AddTool(mcp.Tool{
		Name:        "code_run",
		Description: "Run a snippet in a sandbox. JavaScript and Python return console output; html and css return the markup for preview.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"language": map[string]any{
					"type":        "string",
					"description": "Language tag (javascript, js, python, py, html, css)",
				},
				"code": map[string]any{
					"type":        "string",
					"description": "Source code to run",
				},
			},
			Required: []string{"language", "code"},
		},
	}, codeRunHandler(eng))
	return s
}

func codeRunHandler(eng dispatcher) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)
		if args == nil {
			return textResult("error: invalid arguments", true), nil
		}

		language, _ := args["language"].(string)
		code, _ := args["code"].(string)
		if strings.TrimSpace(language) == "" || strings.TrimSpace(code) == "" {
			return textResult("error: 'language' and 'code' are required", true), nil
		}

		res := eng.Dispatch(ctx, executor.ExecutionRequest{Code: code, Language: language})

		text := res.Content
		if res.Kind == executor.KindPreview {
			text = fmt.Sprintf("[preview markup]\n%s", text)
		}
		if len(text) > maxToolOutput {
			text = text[:maxToolOutput] + "\n... (output truncated)"
		}
		return textResult(text, res.IsError), nil
	}
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: isError,
	}
}
