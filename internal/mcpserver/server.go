package mcpserver

import (
	"context"
	"encoding/json"
	"expvar"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"party-beacon/internal/beacon"
	"party-beacon/internal/host"
)

const (
	toolTimeout      = 5 * time.Second
	reservationsURI  = "beacon://session/reservations"
	partyURIPrefix   = "beacon://parties/"
	partyURITemplate = partyURIPrefix + "{leader_id}"
	jsonMIME         = "application/json"
	serverName       = "party-beacon"
	serverVersion    = "0.1.0"
)

var metricToolCalls = expvar.NewMap("mcp_tool_calls_total")

// Server exposes beacon administration as MCP tools and read-only
// resources for the social layer and operators.
type Server struct {
	host *host.Host

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(h *host.Host) *Server {
	mcpSrv := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithToolHandlerMiddleware(withToolLogging),
		server.WithRecovery(),
	)
	s := &Server{
		host:       h,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

// withToolLogging bounds each call and logs its outcome.
func withToolLogging(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, cancel := context.WithTimeout(ctx, toolTimeout)
		defer cancel()
		start := time.Now()
		name := request.Params.Name
		result, err := next(ctx, request)
		metricToolCalls.Add(name, 1)

		ev := log.Info()
		if err != nil || (result != nil && result.IsError) {
			ev = log.Warn()
		}
		ev.Err(err).
			Str("tool", name).
			Bool("is_error", result != nil && result.IsError).
			Dur("duration", time.Since(start)).
			Msg("mcp tool call")
		return result, err
	}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcp.NewResource(
			reservationsURI,
			"reservations",
			mcp.WithResourceDescription("Ledger snapshot of the hosted session"),
			mcp.WithMIMEType(jsonMIME),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			snap, err := s.host.Snapshot(ctx)
			if err != nil {
				return nil, err
			}
			return jsonContents(request.Params.URI, snap)
		},
	)
	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			partyURITemplate,
			"party",
			mcp.WithTemplateDescription("One party reservation by leader id"),
			mcp.WithTemplateMIMEType(jsonMIME),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			leader := beacon.PlayerID(strings.TrimPrefix(request.Params.URI, partyURIPrefix))
			snap, err := s.host.Snapshot(ctx)
			if err != nil {
				return nil, err
			}
			for _, p := range snap.Parties {
				if p.LeaderID == leader {
					return jsonContents(request.Params.URI, p)
				}
			}
			return nil, errPartyNotFound{leader: leader}
		},
	)
}

type errPartyNotFound struct {
	leader beacon.PlayerID
}

func (e errPartyNotFound) Error() string {
	return "no party led by " + string(e.leader)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{mcp.TextResourceContents{URI: uri, MIMEType: jsonMIME, Text: string(b)}}, nil
}

func toolResult(data any) *mcp.CallToolResult {
	return mcp.NewToolResultStructuredOnly(data)
}
