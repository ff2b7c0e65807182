package mcpserver

import (
	"context"

	"teenpatti-casino/internal/game"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPlayTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"join_room",
			mcp.WithDescription("Queue for a room. A session forms once two players are waiting."),
			mcp.WithString("user_id", mcp.Required(), mcp.Description("User id")),
			mcp.WithString("room", mcp.Required(), mcp.Description("Beginner|Intermediate|Advanced|VIP")),
			mcp.WithString("display_name", mcp.Description("Optional name shown at the table")),
		),
		s.handleJoinRoom,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"leave_room",
			mcp.WithDescription("Leave the room queue. Leaving while seated folds the seat."),
			mcp.WithString("user_id", mcp.Required(), mcp.Description("User id")),
			mcp.WithString("room", mcp.Required(), mcp.Description("Room name")),
		),
		s.handleLeaveRoom,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"act",
			mcp.WithDescription("Submit a betting action for the seat whose turn it is"),
			mcp.WithString("user_id", mcp.Required(), mcp.Description("User id")),
			mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
			mcp.WithString("action", mcp.Required(), mcp.Description("fold|call|raise")),
			mcp.WithNumber("amount", mcp.Description("New round stake for raise, at least twice the current stake")),
			mcp.WithNumber("seat", mcp.Description("Seat index, defaults to the caller's seat")),
		),
		s.handleAct,
	)
}

func (s *Server) handleJoinRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := request.RequireString("user_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	room, err := request.RequireString("room")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	res, err := s.coord.Join(ctx, room, userID, request.GetString("display_name", ""))
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{
		"status":   "queued",
		"room":     res.Room,
		"position": res.Position,
		"balance":  res.Balance,
	}), nil
}

func (s *Server) handleLeaveRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := request.RequireString("user_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	room, err := request.RequireString("room")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	if err := s.coord.Leave(ctx, room, userID); err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{"status": "left", "room": room}), nil
}

func (s *Server) handleAct(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := request.RequireString("user_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	kind, err := request.RequireString("action")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	if !isAllowedAction(kind) {
		return toolError("invalid_action", "action must be fold, call or raise"), nil
	}
	var amount int64
	if request.GetArguments()["amount"] != nil {
		v, convErr := request.RequireFloat("amount")
		if convErr != nil {
			return toolError("invalid_request", convErr.Error()), nil
		}
		amount = int64(v)
	}
	action, err := game.ParseAction(kind, amount)
	if err != nil {
		return mapDomainError(err), nil
	}
	seat := -1
	if request.GetArguments()["seat"] != nil {
		v, convErr := request.RequireFloat("seat")
		if convErr != nil {
			return toolError("invalid_request", convErr.Error()), nil
		}
		seat = seatArg(v)
	}
	if err := s.coord.Act(ctx, sessionID, userID, seat, action); err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{"accepted": true, "session_id": sessionID}), nil
}
