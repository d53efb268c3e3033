package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cuecard/backend/pkg/json"
)

const callbackSuccessPage = `<!DOCTYPE html>
<html>
<head><title>CueCard</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
  <h1>You're all set</h1>
  <p>Speak Confidently. You can close this window and return to CueCard.</p>
</body>
</html>`

const callbackFailurePage = `<!DOCTYPE html>
<html>
<head><title>CueCard</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
  <h1>Sign-in failed</h1>
  <p>Something went wrong. Close this window and try again from CueCard.</p>
</body>
</html>`

// OAuthLogin redirects the browser to the Google consent screen for the
// requested scope.
func (h *Handler) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	h.log.Info("oauth login requested", slog.String("scope", scope))

	authURL, err := h.auth.AuthURL(r.Context(), scope)
	if err != nil {
		h.log.Error("failed to build auth url", slog.String("error", err.Error()))
		json.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// OAuthCallback completes the flow Google redirects back into. The response
// is a human-facing page; the app learns the outcome over the event socket.
func (h *Handler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if errParam := query.Get("error"); errParam != "" {
		h.log.Warn("oauth callback returned error", slog.String("error", errParam))
		h.writeCallbackPage(w, false)
		return
	}

	code := query.Get("code")
	if code == "" {
		h.log.Warn("oauth callback missing code")
		h.writeCallbackPage(w, false)
		return
	}

	result, err := h.auth.HandleCallback(r.Context(), code)
	if err != nil {
		h.log.Error("oauth callback failed", slog.String("error", err.Error()))
		h.writeCallbackPage(w, false)
		return
	}

	h.log.Info("oauth callback completed",
		slog.String("scope", result.Scope),
		slog.Bool("slides_authorized", result.SlidesAuthorized))

	h.hub.Emit("auth-status", h.auth.Status())
	h.writeCallbackPage(w, true)
}

func (h *Handler) writeCallbackPage(w http.ResponseWriter, success bool) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	page := callbackFailurePage
	if success {
		page = callbackSuccessPage
	}
	fmt.Fprint(w, page)
}

type StatusResponse struct {
	Authenticated    bool `json:"authenticated"`
	SlidesAuthorized bool `json:"slides_authorized"`
}

func (h *Handler) OAuthStatus(w http.ResponseWriter, r *http.Request) {
	status := h.auth.Status()
	json.WriteJSON(w, http.StatusOK, StatusResponse{
		Authenticated:    status.Authenticated,
		SlidesAuthorized: status.SlidesAuthorized,
	})
}

type LogoutResponse struct {
	Success bool `json:"success"`
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context()); err != nil {
		h.log.Error("logout failed", slog.String("error", err.Error()))
		json.WriteError(w, http.StatusInternalServerError, err)
		return
	}

	h.hub.Emit("auth-status", h.auth.Status())
	json.WriteJSON(w, http.StatusOK, LogoutResponse{Success: true})
}
