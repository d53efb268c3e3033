package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cuecard/backend/gateways/relay/notes"
	"github.com/cuecard/backend/pkg/json"
	teleentity "github.com/cuecard/backend/services/teleprompter/entity"
)

type ParseNotesRequest struct {
	Notes string `json:"notes"`
}

type ParseNotesResponse struct {
	Success bool               `json:"success"`
	Content teleentity.Content `json:"content"`
}

func (h *Handler) ParseNotes(w http.ResponseWriter, r *http.Request) {
	var req ParseNotesRequest
	if err := json.ParseJSON(r, &req); err != nil {
		json.WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	content := h.prompter.Parse(req.Notes)
	h.log.Debug("notes parsed",
		slog.Int("segments", len(content.Segments)),
		slog.Bool("has_timing", content.HasTiming))

	json.WriteJSON(w, http.StatusOK, ParseNotesResponse{Success: true, Content: content})
}

type FormatNotesRequest struct {
	Text string `json:"text"`
}

type FormatNotesResponse struct {
	Success   bool   `json:"success"`
	Formatted string `json:"formatted"`
}

func (h *Handler) FormatNotes(w http.ResponseWriter, r *http.Request) {
	var req FormatNotesRequest
	if err := json.ParseJSON(r, &req); err != nil {
		json.WriteError(w, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	json.WriteJSON(w, http.StatusOK, FormatNotesResponse{
		Success:   true,
		Formatted: h.prompter.FormatForDisplay(req.Text),
	})
}

type RefreshNotesResponse struct {
	Success bool `json:"success"`
}

// RefreshNotes refetches the active presentation's notes, used after the
// speaker edits them mid-session.
func (h *Handler) RefreshNotes(w http.ResponseWriter, r *http.Request) {
	if err := h.monitor.Refresh(r.Context()); err != nil {
		h.log.Error("notes refresh failed", slog.String("error", err.Error()))
		json.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	if text, ok := h.monitor.CurrentNotes(); ok {
		h.hub.Emit("notes-refreshed", map[string]any{
			"notes":  text,
			"parsed": h.prompter.Parse(text),
		})
	}

	json.WriteJSON(w, http.StatusOK, RefreshNotesResponse{Success: true})
}

type CurrentSlideResponse struct {
	Slide  notes.SlideData    `json:"slide"`
	Notes  string             `json:"notes"`
	Parsed teleentity.Content `json:"parsed"`
}

func (h *Handler) CurrentSlide(w http.ResponseWriter, r *http.Request) {
	slide := h.monitor.CurrentSlide()
	if slide == nil {
		json.WriteError(w, http.StatusNotFound, fmt.Errorf("no active slide"))
		return
	}

	text, _ := h.monitor.CurrentNotes()
	json.WriteJSON(w, http.StatusOK, CurrentSlideResponse{
		Slide:  *slide,
		Notes:  text,
		Parsed: h.prompter.Parse(text),
	})
}
