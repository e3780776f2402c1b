package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/cellwatch/internal/notifications"
	"github.com/ziadkadry99/cellwatch/internal/scanner"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes the scanner to agents.
type Server struct {
	scanner *scanner.Scanner
	outbox  *notifications.Store
	mcp     *server.MCPServer
}

// NewServer creates a new MCP server. outbox may be nil, in which case
// list_outbox reports that no outbox is configured.
func NewServer(sc *scanner.Scanner, outbox *notifications.Store) *Server {
	s := &Server{
		scanner: sc,
		outbox:  outbox,
	}

	s.mcp = server.NewMCPServer(
		"cellwatch",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(getCellStatusTool, s.handleGetCellStatus)
	s.mcp.AddTool(scanNowTool, s.handleScanNow)
	s.mcp.AddTool(sendReportTool, s.handleSendReport)
	s.mcp.AddTool(listOutboxTool, s.handleListOutbox)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
