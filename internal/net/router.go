// Package net exposes the HTTP and websocket surface in front of the hub.
package net

import (
	nethttp "net/http"

	"github.com/gin-gonic/gin"

	server "warbound/server"
	"warbound/server/internal/telemetry"
)

// RouterConfig tunes the HTTP surface.
type RouterConfig struct {
	Logger telemetry.Logger
}

// NewRouter builds the gin engine: room lifecycle endpoints, diagnostics,
// and the websocket upgrade.
func NewRouter(hub *server.Hub, cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.NopLogger{}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	ws := newWSHandler(hub, logger)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(nethttp.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.POST("/rooms", func(c *gin.Context) {
			room, err := hub.CreateRoom()
			if err != nil {
				logger.Errorw("create room failed", "error", err)
				c.JSON(nethttp.StatusInternalServerError, gin.H{"error": "room creation failed"})
				return
			}
			c.JSON(nethttp.StatusCreated, gin.H{
				"roomId": room.ID(),
				"seed":   room.Seed(),
			})
		})

		api.GET("/rooms", func(c *gin.Context) {
			c.JSON(nethttp.StatusOK, gin.H{"rooms": hub.Rooms()})
		})

		api.GET("/rooms/:id", func(c *gin.Context) {
			room, ok := hub.Room(c.Param("id"))
			if !ok {
				c.JSON(nethttp.StatusNotFound, gin.H{"error": "unknown room"})
				return
			}
			c.JSON(nethttp.StatusOK, room.Info())
		})

		api.POST("/rooms/:id/join", func(c *gin.Context) {
			response, err := hub.Join(c.Param("id"))
			if err != nil {
				c.JSON(nethttp.StatusNotFound, gin.H{"error": "unknown room"})
				return
			}
			c.JSON(nethttp.StatusOK, response)
		})
	}

	router.GET("/ws/:room/:session", ws.handle)

	return router
}
