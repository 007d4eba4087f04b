package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/zulandar/signalbox/internal/messaging"
	"github.com/zulandar/signalbox/internal/service"
)

// Name is the implementation name announced to clients.
const Name = "signalbox"

// NewServer builds an MCP server with every tool registered.
func NewServer(svc *service.Service, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: Name, Version: version}, nil)
	RegisterTools(server, svc)
	return server
}

// Run serves svc over stdin/stdout until ctx is cancelled or the client
// disconnects. stdout carries protocol frames only; logging stays on
// stderr.
func Run(ctx context.Context, svc *service.Service, version string) error {
	defer svc.Wait()
	return NewServer(svc, version).Run(ctx, &mcp.StdioTransport{})
}

type pageView struct {
	Messages []messaging.MessageView `json:"messages"`
	LastID   uint64                  `json:"last_id"`
}

func newPageView(p messaging.Page) pageView {
	return pageView{Messages: messaging.Views(p.Messages), LastID: p.LastID}
}
