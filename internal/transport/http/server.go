// Package http provides the HTTP server for runwatch.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/gogo/runwatch/internal/service"
	v1 "github.com/xiaot623/gogo/runwatch/internal/transport/http/v1"
	"github.com/xiaot623/gogo/runwatch/internal/transport/ws"
)

// NewServer creates and configures the HTTP server: the v1 API plus the
// observer websocket endpoint.
func NewServer(svc *service.Service, wsServer *ws.Server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	v1.NewHandler(svc).RegisterRoutes(e)
	if wsServer != nil {
		e.GET("/ws", wsServer.HandleWebSocket)
	}

	return e
}
