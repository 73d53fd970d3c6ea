package main

import (
	"github.com/IteraLabs/convective/internal/events"
	"github.com/IteraLabs/convective/internal/server"
	"github.com/hashicorp/go-hclog"
)

func main() {
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "convective",
		Level: hclog.LevelFromString("DEBUG"),
	})

	eventBus := events.NewEventBus()

	handler := server.NewHandler(logger, eventBus)
	defer handler.Close()

	server.StartHttpServer(logger, 8080, handler.Router())
}
