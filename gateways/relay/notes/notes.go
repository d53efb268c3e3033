package notes

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// SlideData is the slide-change payload reported by the browser extension.
type SlideData struct {
	PresentationID string  `json:"presentationId"`
	SlideID        string  `json:"slideId"`
	SlideNumber    *int    `json:"slideNumber,omitempty"`
	Title          *string `json:"title,omitempty"`
	Mode           *string `json:"mode,omitempty"`
	Timestamp      *int64  `json:"timestamp,omitempty"`
	URL            *string `json:"url,omitempty"`
}

type SlidesAPI interface {
	NotesBySlide(ctx context.Context, accessToken, presentationID string) (map[string]string, error)
}

type TokenSource interface {
	SlidesToken(ctx context.Context) (string, error)
}

// Monitor tracks the presenter's position and keeps speaker notes for the
// active presentation cached so slide changes resolve without an API call.
type Monitor struct {
	slides SlidesAPI
	tokens TokenSource
	log    *slog.Logger

	mu                  sync.RWMutex
	cache               map[string]string
	current             *SlideData
	currentPresentation string
}

func NewMonitor(slides SlidesAPI, tokens TokenSource, log *slog.Logger) *Monitor {
	return &Monitor{
		slides: slides,
		tokens: tokens,
		log:    log,
		cache:  make(map[string]string),
	}
}

// HandleSlideChange records the new position and returns the slide's speaker
// notes. Moving to a new presentation fetches its whole notes set; a cache
// miss within the same presentation refetches once. Slides without notes
// yield the empty string.
func (m *Monitor) HandleSlideChange(ctx context.Context, data SlideData) (string, error) {
	m.mu.Lock()
	changed := m.currentPresentation != data.PresentationID
	m.currentPresentation = data.PresentationID
	copied := data
	m.current = &copied
	m.mu.Unlock()

	fetched := false
	if changed {
		m.log.Info("presentation changed", slog.String("presentation_id", data.PresentationID))
		if err := m.fetch(ctx, data.PresentationID); err != nil {
			return "", err
		}
		fetched = true
	}

	text, ok := m.lookup(data.PresentationID, data.SlideID)
	if !ok && !fetched {
		if err := m.fetch(ctx, data.PresentationID); err != nil {
			return "", err
		}
		text, _ = m.lookup(data.PresentationID, data.SlideID)
	}

	return text, nil
}

// Refresh refetches the notes of the active presentation, discarding what
// was cached for it.
func (m *Monitor) Refresh(ctx context.Context) error {
	m.mu.RLock()
	presentationID := m.currentPresentation
	m.mu.RUnlock()

	if presentationID == "" {
		return fmt.Errorf("no active presentation")
	}
	return m.fetch(ctx, presentationID)
}

// CurrentSlide returns the last reported position, or nil before the first
// slide change.
func (m *Monitor) CurrentSlide() *SlideData {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return nil
	}
	copied := *m.current
	return &copied
}

// CurrentNotes returns the cached notes for the current slide.
func (m *Monitor) CurrentNotes() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.current == nil {
		return "", false
	}
	text, ok := m.cache[cacheKey(m.current.PresentationID, m.current.SlideID)]
	return text, ok
}

func (m *Monitor) fetch(ctx context.Context, presentationID string) error {
	token, err := m.tokens.SlidesToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to get slides token: %w", err)
	}

	bySlide, err := m.slides.NotesBySlide(ctx, token, presentationID)
	if err != nil {
		return fmt.Errorf("failed to fetch notes: %w", err)
	}

	m.mu.Lock()
	for key := range m.ownedKeys(presentationID) {
		delete(m.cache, key)
	}
	for slideID, text := range bySlide {
		m.cache[cacheKey(presentationID, slideID)] = text
	}
	m.mu.Unlock()

	m.log.Debug("notes cache updated",
		slog.String("presentation_id", presentationID),
		slog.Int("slides_with_notes", len(bySlide)))
	return nil
}

// ownedKeys lists cache keys of one presentation. Callers hold mu.
func (m *Monitor) ownedKeys(presentationID string) map[string]struct{} {
	prefix := presentationID + ":"
	keys := make(map[string]struct{})
	for key := range m.cache {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			keys[key] = struct{}{}
		}
	}
	return keys
}

func (m *Monitor) lookup(presentationID, slideID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	text, ok := m.cache[cacheKey(presentationID, slideID)]
	return text, ok
}

func cacheKey(presentationID, slideID string) string {
	return presentationID + ":" + slideID
}
