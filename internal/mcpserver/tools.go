// Package mcpserver exposes the service operations as Model Context
// Protocol tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/zulandar/signalbox/internal/service"
)

type registerArgs struct {
	Name        string `json:"name" jsonschema:"Your agent name, unique among live agents"`
	Description string `json:"description,omitempty" jsonschema:"What you are working on"`
	Group       string `json:"group,omitempty" jsonschema:"Group to join (default: default)"`
}

type deregisterArgs struct {
	Name string `json:"name" jsonschema:"Your agent name"`
}

type broadcastArgs struct {
	Name     string `json:"name" jsonschema:"Your agent name"`
	Message  string `json:"message" jsonschema:"Text to send"`
	Priority string `json:"priority,omitempty" jsonschema:"normal, high or urgent (default: normal)"`
	Group    string `json:"group,omitempty" jsonschema:"Target group; all for every group; omit for your own group"`
}

type directMessageArgs struct {
	Name    string `json:"name" jsonschema:"Your agent name"`
	To      string `json:"to" jsonschema:"Recipient agent name"`
	Message string `json:"message" jsonschema:"Text to send"`
}

type discoverArgs struct {
	Group string `json:"group,omitempty" jsonschema:"Only list agents in this group"`
}

type noArgs struct{}

type channelSendArgs struct {
	Name    string `json:"name" jsonschema:"Your agent name"`
	Channel string `json:"channel" jsonschema:"Channel name (same as a group name)"`
	Message string `json:"message" jsonschema:"Text to send"`
}

type channelHistoryArgs struct {
	Channel  string `json:"channel" jsonschema:"Channel name"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum messages (default 20, max 200)"`
	Detailed bool   `json:"detailed,omitempty" jsonschema:"Include ids, timestamps and types"`
}

type dmHistoryArgs struct {
	Name     string `json:"name" jsonschema:"Your agent name"`
	With     string `json:"with_agent" jsonschema:"The other agent"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Maximum messages (default 20, max 200)"`
	Detailed bool   `json:"detailed,omitempty" jsonschema:"Include ids, timestamps and types"`
}

type messagesSinceArgs struct {
	Since int64 `json:"since_id,omitempty" jsonschema:"Return messages with a larger id than this"`
	Limit int   `json:"limit,omitempty" jsonschema:"Maximum messages (default 50)"`
}

// RegisterTools registers every signalbox tool on server.
func RegisterTools(server *mcp.Server, svc *service.Service) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "register",
		Description: "Register this agent so others can discover and message it. Call once at startup.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args registerArgs) (*mcp.CallToolResult, any, error) {
		return handleRegister(ctx, svc, args), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "deregister",
		Description: "Leave the directory and notify your group.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args deregisterArgs) (*mcp.CallToolResult, any, error) {
		return handleDeregister(ctx, svc, args), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "broadcast",
		Description: "Send a message to every other agent in a group.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args broadcastArgs) (*mcp.CallToolResult, any, error) {
		return handleBroadcast(ctx, svc, args), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "direct_message",
		Description: "Send a private message to one agent.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args directMessageArgs) (*mcp.CallToolResult, any, error) {
		return handleDirectMessage(ctx, svc, args), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "discover",
		Description: "List registered agents.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args discoverArgs) (*mcp.CallToolResult, any, error) {
		return handleDiscover(ctx, svc, args), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "groups",
		Description: "List groups with member counts.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ noArgs) (*mcp.CallToolResult, any, error) {
		return toolResult(service.RenderGroups(svc.Groups(ctx)), false), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "channel_send",
		Description: "Post to a channel. Members of the group with the same name receive it.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args channelSendArgs) (*mcp.CallToolResult, any, error) {
		return handleChannelSend(ctx, svc, args), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "channel_history",
		Description: "Read recent messages on a channel, oldest first.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args channelHistoryArgs) (*mcp.CallToolResult, any, error) {
		return handleChannelHistory(ctx, svc, args), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "dm_history",
		Description: "Read recent direct messages between you and another agent, oldest first.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args dmHistoryArgs) (*mcp.CallToolResult, any, error) {
		return handleDMHistory(ctx, svc, args), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "channel_list",
		Description: "List channels with member and message counts.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ noArgs) (*mcp.CallToolResult, any, error) {
		return toolResult(service.RenderChannels(svc.ChannelList(ctx)), false), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "messages_since",
		Description: "Poll the message log. Returns JSON {messages, last_id}; pass last_id back as since_id.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, args messagesSinceArgs) (*mcp.CallToolResult, any, error) {
		return handleMessagesSince(ctx, svc, args), nil, nil
	})
}

func required(fields ...string) string {
	for i := 0; i+1 < len(fields); i += 2 {
		if strings.TrimSpace(fields[i+1]) == "" {
			return fmt.Sprintf("Error: %s is required", fields[i])
		}
	}
	return ""
}

func handleRegister(ctx context.Context, svc *service.Service, args registerArgs) *mcp.CallToolResult {
	if msg := required("name", args.Name); msg != "" {
		return toolError(msg)
	}
	res, err := svc.Register(ctx, service.RegisterRequest{
		Name:        args.Name,
		Description: args.Description,
		Group:       args.Group,
	})
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(res.String(), false)
}

func handleDeregister(ctx context.Context, svc *service.Service, args deregisterArgs) *mcp.CallToolResult {
	if msg := required("name", args.Name); msg != "" {
		return toolError(msg)
	}
	res, err := svc.Deregister(ctx, args.Name)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(res.String(), false)
}

func handleBroadcast(ctx context.Context, svc *service.Service, args broadcastArgs) *mcp.CallToolResult {
	if msg := required("name", args.Name, "message", args.Message); msg != "" {
		return toolError(msg)
	}
	rep, err := svc.Broadcast(ctx, args.Name, args.Message, args.Priority, args.Group)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(service.RenderBroadcast(rep), false)
}

func handleDirectMessage(ctx context.Context, svc *service.Service, args directMessageArgs) *mcp.CallToolResult {
	if msg := required("name", args.Name, "to", args.To, "message", args.Message); msg != "" {
		return toolError(msg)
	}
	out, err := svc.DirectMessage(ctx, args.Name, args.To, args.Message)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(service.RenderDM(out), !out.OK())
}

func handleDiscover(ctx context.Context, svc *service.Service, args discoverArgs) *mcp.CallToolResult {
	return toolResult(service.RenderAgents(svc.Discover(ctx, args.Group), args.Group), false)
}

func handleChannelSend(ctx context.Context, svc *service.Service, args channelSendArgs) *mcp.CallToolResult {
	if msg := required("name", args.Name, "channel", args.Channel, "message", args.Message); msg != "" {
		return toolError(msg)
	}
	rep, err := svc.ChannelSend(ctx, args.Name, args.Channel, args.Message)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(service.RenderChannel(rep), false)
}

func handleChannelHistory(ctx context.Context, svc *service.Service, args channelHistoryArgs) *mcp.CallToolResult {
	if msg := required("channel", args.Channel); msg != "" {
		return toolError(msg)
	}
	return toolResult(service.RenderHistory(svc.ChannelHistory(ctx, args.Channel, args.Limit), args.Detailed), false)
}

func handleDMHistory(ctx context.Context, svc *service.Service, args dmHistoryArgs) *mcp.CallToolResult {
	if msg := required("name", args.Name, "with_agent", args.With); msg != "" {
		return toolError(msg)
	}
	return toolResult(service.RenderHistory(svc.DMHistory(ctx, args.Name, args.With, args.Limit), args.Detailed), false)
}

func handleMessagesSince(ctx context.Context, svc *service.Service, args messagesSinceArgs) *mcp.CallToolResult {
	if args.Since < 0 {
		return toolError("Error: since_id must not be negative")
	}
	page := svc.MessagesSince(ctx, uint64(args.Since), args.Limit)
	data, err := json.Marshal(newPageView(page))
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(string(data), false)
}

func toolResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: isError,
	}
}

func toolError(text string) *mcp.CallToolResult {
	return toolResult(text, true)
}
