package dashboard

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/signalbox/internal/messaging"
	"github.com/zulandar/signalbox/internal/service"
	"github.com/zulandar/signalbox/internal/store"
)

// registerRoutes sets up all dashboard routes on the Gin router.
func registerRoutes(router *gin.Engine, svc *service.Service, poll time.Duration) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.GET("/agents", handleAgents(svc))
	api.GET("/groups", handleGroups(svc))
	api.GET("/channels", handleChannels(svc))
	api.GET("/channels/:name/history", handleChannelHistory(svc))
	api.GET("/dm/:a/:b", handleDMHistory(svc))
	api.GET("/messages", handleMessages(svc))
	api.GET("/metrics", handleMetrics(svc))
	api.GET("/events", handleSSE(svc, poll))
}

// queryInt parses an integer query parameter, returning def when absent.
func queryInt(c *gin.Context, key string, def int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key + ": " + raw})
		return 0, false
	}
	return n, true
}

func handleAgents(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"agents": svc.Discover(c.Request.Context(), c.Query("group"))})
	}
}

func handleGroups(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		groups := svc.Groups(c.Request.Context())
		if groups == nil {
			groups = []store.GroupCount{}
		}
		c.JSON(http.StatusOK, gin.H{"groups": groups})
	}
}

func handleChannels(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"channels": svc.ChannelList(c.Request.Context())})
	}
}

func handleChannelHistory(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := queryInt(c, "limit", 0)
		if !ok {
			return
		}
		msgs := svc.ChannelHistory(c.Request.Context(), c.Param("name"), limit)
		c.JSON(http.StatusOK, gin.H{"channel": c.Param("name"), "messages": messaging.Views(msgs)})
	}
}

func handleDMHistory(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := queryInt(c, "limit", 0)
		if !ok {
			return
		}
		msgs := svc.DMHistory(c.Request.Context(), c.Param("a"), c.Param("b"), limit)
		c.JSON(http.StatusOK, gin.H{"messages": messaging.Views(msgs)})
	}
}

func handleMessages(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		since, ok := queryInt(c, "since", 0)
		if !ok {
			return
		}
		limit, ok := queryInt(c, "limit", 0)
		if !ok {
			return
		}
		page := svc.MessagesSince(c.Request.Context(), uint64(since), limit)
		c.JSON(http.StatusOK, gin.H{"messages": messaging.Views(page.Messages), "last_id": page.LastID})
	}
}

func handleMetrics(svc *service.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Metrics(c.Request.Context()))
	}
}
