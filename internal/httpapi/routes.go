package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/anrdraft/draft-backend/internal/ws"
)

func SetupRoutes(a *API) http.Handler {
	r := chi.NewRouter()

	// Slash commands
	r.Post("/commands/create", a.CreateDraft)
	r.Post("/commands/join", a.JoinDraft)
	r.Post("/commands/leave", a.LeaveDraft)
	r.Post("/commands/start", a.StartDraft)
	r.Post("/commands/cancel", a.CancelDraft)
	r.Post("/commands/picks", a.ShowPicks)

	// Button clicks
	r.Post("/actions", a.Actions)

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(a.Hub))
	return r
}
