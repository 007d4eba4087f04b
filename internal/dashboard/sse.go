package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/signalbox/internal/messaging"
	"github.com/zulandar/signalbox/internal/service"
)

// catchUpPage bounds each read while skipping to the end of the log.
const catchUpPage = 200

// latestID pages through the log to find the newest message id.
func latestID(ctx context.Context, svc *service.Service) uint64 {
	var last uint64
	for {
		page := svc.MessagesSince(ctx, last, catchUpPage)
		last = page.LastID
		if len(page.Messages) < catchUpPage {
			return last
		}
	}
}

// handleSSE streams each new log row as a "message" event. Without a
// since parameter it starts after the newest existing row.
func handleSSE(svc *service.Service, poll time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var lastSeen uint64
		if raw := c.Query("since"); raw != "" {
			n, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				c.JSON(400, gin.H{"error": "invalid since: " + raw})
				return
			}
			lastSeen = n
		} else {
			lastSeen = latestID(ctx, svc)
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		writeSSE(c.Writer, "connected", map[string]any{"type": "connected", "last_id": lastSeen})
		c.Writer.Flush()

		ticker := time.NewTicker(poll)
		heartbeat := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				page := svc.MessagesSince(ctx, lastSeen, catchUpPage)
				if len(page.Messages) == 0 {
					continue
				}
				for _, m := range page.Messages {
					writeSSE(c.Writer, "message", messaging.View(m))
				}
				lastSeen = page.LastID
				c.Writer.Flush()
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
