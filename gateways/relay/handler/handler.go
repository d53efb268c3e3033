package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cuecard/backend/gateways/relay/events"
	"github.com/cuecard/backend/gateways/relay/notes"
	"github.com/cuecard/backend/pkg/json"
	authusecase "github.com/cuecard/backend/services/auth/usecase"
	teleentity "github.com/cuecard/backend/services/teleprompter/entity"
	teleusecase "github.com/cuecard/backend/services/teleprompter/usecase"
)

type Handler struct {
	auth     authusecase.Usecase
	prompter teleusecase.Usecase
	monitor  *notes.Monitor
	hub      *events.Hub
	log      *slog.Logger
}

func New(auth authusecase.Usecase, prompter teleusecase.Usecase, monitor *notes.Monitor, hub *events.Hub, log *slog.Logger) *Handler {
	log.Debug("creating relay handler")
	return &Handler{
		auth:     auth,
		prompter: prompter,
		monitor:  monitor,
		hub:      hub,
		log:      log,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.Health)
	router.Post("/slides", h.SlideChange)

	router.Route("/oauth", func(r chi.Router) {
		r.Get("/login", h.OAuthLogin)
		r.Get("/callback", h.OAuthCallback)
		r.Get("/status", h.OAuthStatus)
		r.Post("/logout", h.Logout)
	})

	router.Route("/api/v1", func(api chi.Router) {
		api.Route("/teleprompter", func(r chi.Router) {
			r.Post("/parse", h.ParseNotes)
			r.Post("/format", h.FormatNotes)
		})
		api.Post("/notes/refresh", h.RefreshNotes)
		api.Get("/slides/current", h.CurrentSlide)
	})

	router.Get("/ws", h.hub.Handle)

	h.log.Info("relay routes registered")
}

type HealthResponse struct {
	Status        string `json:"status"`
	Service       string `json:"service"`
	Authenticated bool   `json:"authenticated"`
	Clients       int    `json:"clients"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	json.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Service:       "cuecard-relay",
		Authenticated: h.auth.Status().Authenticated,
		Clients:       h.hub.ClientCount(),
	})
}

type SlideChangeResponse struct {
	Success bool               `json:"success"`
	Notes   string             `json:"notes"`
	Parsed  teleentity.Content `json:"parsed"`
}

// SlideChange receives position updates from the browser extension, resolves
// the slide's speaker notes and fans the event out to listening frontends.
func (h *Handler) SlideChange(w http.ResponseWriter, r *http.Request) {
	var data notes.SlideData
	if err := json.ParseJSON(r, &data); err != nil {
		h.log.Error("failed to decode slide change", slog.String("error", err.Error()))
		json.WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if data.PresentationID == "" || data.SlideID == "" {
		json.WriteError(w, http.StatusBadRequest, fmt.Errorf("presentationId and slideId are required"))
		return
	}

	h.log.Info("slide change received",
		slog.String("presentation_id", data.PresentationID),
		slog.String("slide_id", data.SlideID))

	text, err := h.monitor.HandleSlideChange(r.Context(), data)
	if err != nil {
		h.log.Error("failed to resolve slide notes", slog.String("error", err.Error()))
		json.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	parsed := h.prompter.Parse(text)

	h.hub.Emit("slide-changed", map[string]any{
		"slide":  data,
		"notes":  text,
		"parsed": parsed,
	})

	json.WriteJSON(w, http.StatusOK, SlideChangeResponse{
		Success: true,
		Notes:   text,
		Parsed:  parsed,
	})
}
