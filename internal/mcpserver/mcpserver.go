// Package mcpserver registers the sandbox core's five operations as MCP
// tools: any MCP-speaking agent runtime can drive a sandbox over stdio
// without linking this module directly.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nkkko/sandboxcore/internal/envelope"
	"github.com/nkkko/sandboxcore/internal/execsvc"
	"github.com/nkkko/sandboxcore/internal/sandbox"
)

const (
	serverName    = "sandboxcore"
	serverVersion = "0.1.0"
)

// NoOutput is the structured-output type for every tool here: each one
// encodes its entire result into the content blocks of the
// CallToolResult instead of relying on the SDK's reflection-derived
// structured output.
type NoOutput struct{}

// New builds an MCP server fronting svc's five operations.
func New(svc *sandbox.Service) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "exec",
		Description: "Run a command in the sandbox workspace and return its output envelope.",
	}, execHandler(svc))

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "apply_patch",
		Description: "Apply a V4A-format patch (Add/Delete File blocks) to the sandbox workspace.",
	}, applyPatchHandler(svc))

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "upload_file",
		Description: "Write content to a file in the sandbox workspace, at a host-relative path.",
	}, uploadFileHandler(svc))

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "download_file",
		Description: "Read a file from the sandbox workspace, at a host-relative path.",
	}, downloadFileHandler(svc))

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "get_preview_link",
		Description: "Resolve a public preview URL for a TCP port inside the sandbox workspace.",
	}, getPreviewLinkHandler(svc))

	return server
}

// Serve runs server over stdio until ctx is cancelled or the transport
// closes.
func Serve(ctx context.Context, server *mcpsdk.Server) error {
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

// ExecArgs is the exec tool's input shape.
type ExecArgs struct {
	Cmd       []string `json:"cmd" jsonschema:"the argv to run"`
	Workdir   string   `json:"workdir,omitempty" jsonschema:"host-relative working directory"`
	TimeoutMs int      `json:"timeout_ms,omitempty" jsonschema:"timeout in milliseconds, 0 for the backend default"`
}

func execHandler(svc *sandbox.Service) mcpsdk.ToolHandlerFor[ExecArgs, NoOutput] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, args ExecArgs) (*mcpsdk.CallToolResult, NoOutput, error) {
		start := time.Now()
		res := svc.Exec(ctx, execsvc.Input{Cmd: args.Cmd, Workdir: args.Workdir, TimeoutMs: args.TimeoutMs})
		return textResult(envelope.Encode(res, time.Since(start)))
	}
}

// ApplyPatchArgs is the apply_patch tool's input shape.
type ApplyPatchArgs struct {
	Patch string `json:"patch" jsonschema:"the full V4A patch text"`
}

func applyPatchHandler(svc *sandbox.Service) mcpsdk.ToolHandlerFor[ApplyPatchArgs, NoOutput] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, args ApplyPatchArgs) (*mcpsdk.CallToolResult, NoOutput, error) {
		start := time.Now()
		res := svc.ApplyPatch(ctx, args.Patch)
		return textResult(envelope.Encode(res, time.Since(start)))
	}
}

// UploadFileArgs is the upload_file tool's input shape.
type UploadFileArgs struct {
	Path    string `json:"path" jsonschema:"host-relative destination path"`
	Content string `json:"content" jsonschema:"file content to write"`
}

func uploadFileHandler(svc *sandbox.Service) mcpsdk.ToolHandlerFor[UploadFileArgs, NoOutput] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, args UploadFileArgs) (*mcpsdk.CallToolResult, NoOutput, error) {
		if err := svc.UploadFile(ctx, args.Path, []byte(args.Content)); err != nil {
			return textError(err)
		}
		return textResult(map[string]any{"status": "ok", "path": args.Path})
	}
}

// DownloadFileArgs is the download_file tool's input shape.
type DownloadFileArgs struct {
	Path string `json:"path" jsonschema:"host-relative path to read"`
}

func downloadFileHandler(svc *sandbox.Service) mcpsdk.ToolHandlerFor[DownloadFileArgs, NoOutput] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, args DownloadFileArgs) (*mcpsdk.CallToolResult, NoOutput, error) {
		content, err := svc.DownloadFile(ctx, args.Path)
		if err != nil {
			return textError(err)
		}
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(content)}},
		}, NoOutput{}, nil
	}
}

// GetPreviewLinkArgs is the get_preview_link tool's input shape.
type GetPreviewLinkArgs struct {
	Port int `json:"port" jsonschema:"TCP port inside the workspace"`
}

func getPreviewLinkHandler(svc *sandbox.Service) mcpsdk.ToolHandlerFor[GetPreviewLinkArgs, NoOutput] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, args GetPreviewLinkArgs) (*mcpsdk.CallToolResult, NoOutput, error) {
		link, err := svc.GetPreviewLink(ctx, args.Port)
		if err != nil {
			return textError(err)
		}
		return textResult(map[string]any{"url": link.URL, "token": link.Token})
	}
}

func textResult(v any) (*mcpsdk.CallToolResult, NoOutput, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return textError(fmt.Errorf("mcpserver: marshal result: %w", err))
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(raw)}},
	}, NoOutput{}, nil
}

func textError(err error) (*mcpsdk.CallToolResult, NoOutput, error) {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
		IsError: true,
	}, NoOutput{}, nil
}
