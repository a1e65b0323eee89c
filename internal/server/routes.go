package server

import (
	"go.uber.org/fx"

	"github.com/polittech/stratagem/internal/server/api"
	"github.com/polittech/stratagem/internal/server/middleware"
)

type Handlers struct {
	fx.In

	System *api.SystemHandlers
}

func SetupRoutes(server *Server, handlers Handlers) {
	server.Use(middleware.AccessLog())

	// Probes - no bot state required for liveness
	server.GET("/healthz", handlers.System.Health)
	server.GET("/readyz", handlers.System.Ready)

	apiGroup := server.Group("/api")
	{
		apiGroup.GET("/status", handlers.System.Status)
	}
}
