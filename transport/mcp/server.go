package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mcp-training/relaychat/chat/session"
)

// Session is the chat session the tools operate on.
type Session interface {
	Snapshot() session.State
	SubmitMessage(text string) bool
	ToggleReaction(index int, emoji string) bool
}

// Server binds MCP tools to a chat session
type Server struct {
	session   Session
	mcpServer *server.MCPServer
}

// NewServer creates an MCP server for the given session
func NewServer(sess Session, version string) *Server {
	s := &Server{session: sess}

	s.mcpServer = server.NewMCPServer(
		"Relay Chat",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions(`Relay Chat - MCP Interface

You are connected to a chat room as a single user.

AVAILABLE TOOLS:
- chat_state: Roster and messages (messages are numbered from 0)
- list_users: Connected users
- send_message: Send a message; it shows up in chat_state once the relay echoes it back
- toggle_reaction: Toggle your emoji on a message by its number

NOTE: reactions are only visible to you.`),
	)

	s.registerTools()
	return s
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "chat_state",
		Description: "Get the roster and the message feed",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleChatState)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_users",
		Description: "List the users currently connected",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleListUsers)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "send_message",
		Description: "Send a chat message to the room",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Message text",
				},
			},
			Required: []string{"text"},
		},
	}, s.handleSendMessage)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "toggle_reaction",
		Description: "Add or remove your emoji reaction on a message",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"index": map[string]interface{}{
					"type":        "integer",
					"description": "Message number as shown by chat_state",
				},
				"emoji": map[string]interface{}{
					"type":        "string",
					"description": "Emoji to toggle, e.g. 👍",
				},
			},
			Required: []string{"index", "emoji"},
		},
	}, s.handleToggleReaction)
}

// GetMCPServer returns the underlying MCP server for serving
func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// Tool handlers

func (s *Server) handleChatState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatState(s.session.Snapshot())), nil
}

func (s *Server) handleListUsers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatUsers(s.session.Snapshot())), nil
}

func (s *Server) handleSendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	text, _ := args["text"].(string)

	if _, ok := session.PrepareMessage(text); !ok {
		return mcp.NewToolResultError("message is empty"), nil
	}
	if !s.session.SubmitMessage(text) {
		return mcp.NewToolResultError("message could not be sent; the connection may be closed"), nil
	}
	return mcp.NewToolResultText("Message sent. It will appear in chat_state once the relay echoes it."), nil
}

func (s *Server) handleToggleReaction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	emoji, _ := args["emoji"].(string)
	rawIndex, ok := args["index"].(float64)
	if !ok || rawIndex != float64(int(rawIndex)) {
		return mcp.NewToolResultError("index must be an integer"), nil
	}
	if strings.TrimSpace(emoji) == "" {
		return mcp.NewToolResultError("emoji is required"), nil
	}
	index := int(rawIndex)

	if !s.session.ToggleReaction(index, emoji) {
		return mcp.NewToolResultError(fmt.Sprintf("no message #%d", index)), nil
	}

	state := s.session.Snapshot()
	msg := state.Messages[index]
	verb := "Removed"
	if msg.Reactions.Has(emoji, state.CurrentUser) {
		verb = "Added"
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s %s on message #%d (%d total)", verb, emoji, index, msg.Reactions.Count(emoji))), nil
}

// Formatting helpers

func formatUsers(state session.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Users (%d):\n", len(state.Users))
	for _, u := range state.Users {
		marker := ""
		if u.Name == state.CurrentUser {
			marker = " (you)"
		}
		fmt.Fprintf(&b, "- %s%s\n", u.Name, marker)
	}
	return b.String()
}

func formatState(state session.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are: %s\n\n", state.CurrentUser)
	b.WriteString(formatUsers(state))

	fmt.Fprintf(&b, "\nMessages (%d):\n", len(state.Messages))
	if len(state.Messages) == 0 {
		b.WriteString("(none yet)\n")
	}
	for i, m := range state.Messages {
		fmt.Fprintf(&b, "#%d %s: %s\n", i, m.Sender, m.Body)
		if len(m.Reactions) > 0 {
			parts := make([]string, 0, len(m.Reactions))
			for _, r := range m.Reactions {
				parts = append(parts, fmt.Sprintf("%s %d", r.Emoji, len(r.Users)))
			}
			fmt.Fprintf(&b, "   reactions: %s\n", strings.Join(parts, ", "))
		}
	}
	return b.String()
}
