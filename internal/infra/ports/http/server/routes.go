package server

import (
	"github.com/labstack/echo/v4"

	"github.com/Unmesh-12634/HackMate-sub001/internal/infra/ports/http/handlers"
	"github.com/Unmesh-12634/HackMate-sub001/internal/infra/ports/http/middleware"
)

func New(
	wsHandler *handlers.WebSocketHandler,
	pollHandler *handlers.PollHandler,
) *echo.Echo {
	e := echo.New()

	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.SlogLogger())
	e.Use(middleware.PrometheusMiddleware())

	e.GET("/ws", wsHandler.Handle)

	poll := e.Group("/poll")
	{
		poll.POST("", pollHandler.Open)
		poll.GET("/:sid", pollHandler.Poll)
		poll.POST("/:sid", pollHandler.Send)
		poll.DELETE("/:sid", pollHandler.Close)
	}

	return e
}
