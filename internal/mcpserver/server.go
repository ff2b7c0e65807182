package mcpserver

import (
	"net/http"

	apppublic "teenpatti-casino/internal/app/public"
	"teenpatti-casino/internal/coordinator"

	"github.com/mark3labs/mcp-go/server"
)

type Server struct {
	coord     *coordinator.Coordinator
	publicSvc *apppublic.Service

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(publicSvc *apppublic.Service, coord *coordinator.Coordinator) *Server {
	mcpSrv := server.NewMCPServer(
		"teenpatti-casino",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s := &Server{
		coord:      coord,
		publicSvc:  publicSvc,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerPublicTools()
	s.registerPlayTools()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}
