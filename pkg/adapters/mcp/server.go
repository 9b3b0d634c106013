package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/mesa/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// DefaultInstance is the instance id used when a tool call does not name one.
const DefaultInstance = "mcp"

// Host is the part of the mesa host the MCP server needs.
type Host interface {
	Dispatch(ctx context.Context, agentType, instanceID string, raw any, credential string) domain.Response
	Agents() []string
	Profile(agentType, instanceID string) (domain.Profile, error)
}

// AgentSummary is one entry of the list_agents result.
type AgentSummary struct {
	Name        string   `json:"name" jsonschema_description:"Agent type, used as the first path segment"`
	Description string   `json:"description"`
	Methods     []string `json:"methods" jsonschema_description:"Fully qualified method names"`
}

// AgentsResponse is the structured output of list_agents.
type AgentsResponse struct {
	Agents []AgentSummary `json:"agents"`
}

// Server exposes the hosted agents as MCP tools and resources.
type Server struct {
	host       Host
	credential string
	mcpServer  *server.MCPServer
	logger     *slog.Logger
}

// NewServer creates a new MCP Server instance. Calls are dispatched with credential.
func NewServer(host Host, credential, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		host:       host,
		credential: credential,
		mcpServer: server.NewMCPServer("mesa-mcp", version,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
		),
		logger: logger,
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("MCP Server shutting down")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: list_agents
	listTool := mcp.NewTool("list_agents",
		mcp.WithDescription("List the hosted agents and the methods each one answers."),
		mcp.WithOutputSchema[AgentsResponse](),
	)
	s.mcpServer.AddTool(listTool, mcp.NewStructuredToolHandler(s.handleListAgents))

	// TOOL: call_agent
	callTool := mcp.NewTool("call_agent",
		mcp.WithDescription("Send a JSON-RPC request to an agent and return the response envelope."),
		mcp.WithString("agent", mcp.Required(), mcp.Description("Agent type, e.g. pedidos")),
		mcp.WithString("method", mcp.Required(), mcp.Description("Fully qualified method, e.g. pedidos/orders/create")),
		mcp.WithString("params", mcp.Description("JSON object with the method params (optional)")),
		mcp.WithString("instance", mcp.Description("Instance id (optional)")),
	)
	s.mcpServer.AddTool(callTool, s.handleCallAgent)
}

func (s *Server) handleListAgents(ctx context.Context, request mcp.CallToolRequest, args map[string]interface{}) (AgentsResponse, error) {
	out := AgentsResponse{Agents: []AgentSummary{}}
	for _, name := range s.host.Agents() {
		p, err := s.host.Profile(name, DefaultInstance)
		if err != nil {
			return AgentsResponse{}, fmt.Errorf("profile %s: %w", name, err)
		}
		summary := AgentSummary{Name: p.Name, Description: p.Description}
		for _, c := range p.Capabilities {
			summary.Methods = append(summary.Methods, c.Method)
		}
		out.Agents = append(out.Agents, summary)
	}
	return out, nil
}

func (s *Server) handleCallAgent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agent, err := request.RequireString("agent")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	method, err := request.RequireString("method")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	instance := request.GetString("instance", DefaultInstance)

	var params any = map[string]any{}
	if raw := request.GetString("params", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("params is not valid JSON: %v", err)), nil
		}
	}

	resp := s.host.Dispatch(ctx, agent, instance, domain.NewRequest("mcp-"+method, method, params), s.credential)
	body, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	if resp.IsError() {
		s.logger.Debug("MCP call_agent: error envelope", "agent", agent, "method", method, "code", resp.Error.Code)
		return mcp.NewToolResultError(string(body)), nil
	}
	return mcp.NewToolResultText(string(body)), nil
}

func (s *Server) registerResources() {
	// EXPOSE: mesa://agents/{name}
	for _, name := range s.host.Agents() {
		uri := "mesa://agents/" + name
		agent := name
		s.mcpServer.AddResource(mcp.NewResource(uri, agent+" profile",
			mcp.WithResourceDescription("Capability card of the "+agent+" agent"),
			mcp.WithMIMEType("application/json"),
		), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			p, err := s.host.Profile(agent, DefaultInstance)
			if err != nil {
				return nil, fmt.Errorf("failed to read profile: %w", err)
			}
			jsonBytes, err := json.Marshal(p)
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      uri,
					MIMEType: "application/json",
					Text:     string(jsonBytes),
				},
			}, nil
		})
	}
}
