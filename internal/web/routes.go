package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/facefinder/internal/livesync"
	"github.com/kozaktomas/facefinder/internal/web/handlers"
)

func (s *Server) setupRoutes(deps Deps) {
	photosHandler := handlers.NewPhotosHandler(deps.Pipeline, deps.Detector)
	matchHandler := handlers.NewMatchHandler(deps.Detector, deps.Engine, s.config.Match.Threshold)
	statsHandler := handlers.NewStatsHandler(deps.Store)
	syncHandler := handlers.NewSyncHandler(s.sessions, func(dir, eventID string) *livesync.Session {
		return livesync.NewSession(dir, eventID, s.config.Sync.Interval, s.config.Sync.QueueSize, deps.Pipeline, s.logger)
	})

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Route("/events/{eventID}", func(r chi.Router) {
			r.Post("/photos", photosHandler.Upload)
			r.Post("/match", matchHandler.Match)
			r.Post("/match/ranked", matchHandler.MatchRanked)
			r.Get("/stats", statsHandler.Get)
		})

		// Live sync (long-running sessions)
		r.Post("/sync", syncHandler.Start)
		r.Get("/sync/{sessionID}", syncHandler.Status)
		r.Get("/sync/{sessionID}/events", syncHandler.Events)
		r.Delete("/sync/{sessionID}", syncHandler.Stop)
	})
}
