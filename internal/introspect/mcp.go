package introspect

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const graphResourceURI = "garden://graph"

// MCPServer exposes the introspection queries as MCP tools.
type MCPServer struct {
	src Source
	srv *server.MCPServer
}

// NewMCPServer registers the graph tools and the graph resource.
func NewMCPServer(src Source, version string) *MCPServer {
	s := &MCPServer{
		src: src,
		srv: server.NewMCPServer("garden-mcp", version),
	}

	s.registerTools()
	s.registerResources()

	return s
}

// Server returns the underlying MCP server.
func (s *MCPServer) Server() *server.MCPServer { return s.srv }

// ServeStdio serves on stdin and stdout until the input closes.
func (s *MCPServer) ServeStdio() error {
	return server.ServeStdio(s.srv)
}

func (s *MCPServer) registerTools() {
	s.srv.AddTool(mcp.NewTool("graph_snapshot",
		mcp.WithDescription("Return every node descriptor and edge of the processing graph as JSON."),
	), s.handleSnapshot)

	s.srv.AddTool(mcp.NewTool("graph_processing_order",
		mcp.WithDescription("Return the nodes in the order they are processed each tick."),
	), s.handleOrder)

	s.srv.AddTool(mcp.NewTool("graph_signal_path",
		mcp.WithDescription("Find a signal path between two nodes, given by name or UUID."),
		mcp.WithString("from", mcp.Required(), mcp.Description("Source node name or UUID")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Destination node name or UUID")),
	), s.handlePath)

	s.srv.AddTool(mcp.NewTool("engine_stats",
		mcp.WithDescription("Return tick, skip and failure counters of the engine."),
	), s.handleStats)
}

func (s *MCPServer) registerResources() {
	s.srv.AddResource(mcp.NewResource(graphResourceURI, "Processing graph",
		mcp.WithMIMEType("application/json"),
	), func(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(s.src.Snapshot())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal graph: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      graphResourceURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}

func (s *MCPServer) handleSnapshot(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.src.Snapshot())
}

func (s *MCPServer) handleOrder(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	order, err := processingOrder(s.src)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("processing order failed: %v", err)), nil
	}

	return jsonResult(order)
}

func (s *MCPServer) handlePath(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	from, _ := args["from"].(string)
	to, _ := args["to"].(string)

	if from == "" || to == "" {
		return mcp.NewToolResultError("from and to are required"), nil
	}

	res, err := signalPath(s.src, from, to)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("signal path failed: %v", err)), nil
	}

	return jsonResult(res)
}

func (s *MCPServer) handleStats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.src.Stats())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return mcp.NewToolResultText(string(data)), nil
}
