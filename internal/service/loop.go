package service

import (
	"context"
)

// Start runs the game loop with the registered systems and forwards block
// events to clients. Call it once, after plugins are enabled.
func (s *WorldService) Start(ctx context.Context) {
	for _, sys := range s.registry.GameSystems() {
		s.loop.AddSystem(sys)
	}
	go s.processBlockEvents(ctx)
	go s.loop.Run(ctx)
}

// processBlockEvents receives block events and broadcasts them to clients.
func (s *WorldService) processBlockEvents(ctx context.Context) {
	blockEvents := s.blockManager.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-blockEvents:
			s.broadcastWorldEvent(event)
		}
	}
}
