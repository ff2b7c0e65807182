package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPublicTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_rooms",
			mcp.WithDescription("List rooms with queue length and active session count"),
		),
		s.handleListRooms,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_session",
			mcp.WithDescription("Public view of a session. Hands stay hidden until it is settled."),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		),
		s.handleGetSession,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_player",
			mcp.WithDescription("Player membership, balance and own seat view including the private hand"),
			mcp.WithString("user_id", mcp.Required(), mcp.Description("User id")),
		),
		s.handleGetPlayer,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_ledger",
			mcp.WithDescription("Recent ledger entries for a user"),
			mcp.WithString("user_id", mcp.Required(), mcp.Description("User id")),
			mcp.WithNumber("limit", mcp.Description("Max rows, default 50")),
		),
		s.handleGetLedger,
	)
}

func (s *Server) handleListRooms(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.publicSvc.Rooms(ctx)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, err := s.publicSvc.Session(ctx, sessionID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleGetPlayer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := request.RequireString("user_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	resp, err := s.publicSvc.Player(ctx, userID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}

func (s *Server) handleGetLedger(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := request.RequireString("user_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	limit := clampLimit(request.GetInt("limit", 0))
	resp, err := s.publicSvc.Ledger(ctx, userID, limit)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(resp), nil
}
