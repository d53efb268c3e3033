package slides

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	defaultBaseURL = "https://slides.googleapis.com"

	maxRetries     = 3
	requestTimeout = 15 * time.Second
)

type Config struct {
	// BaseURL override, used by tests. Production leaves it empty.
	BaseURL string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: requestTimeout},
		log:        log,
	}
}

type presentation struct {
	Slides []slide `json:"slides"`
}

type slide struct {
	ObjectID        string `json:"objectId"`
	SlideProperties struct {
		NotesPage *notesPage `json:"notesPage"`
	} `json:"slideProperties"`
}

type notesPage struct {
	PageElements []pageElement `json:"pageElements"`
}

type pageElement struct {
	Shape *struct {
		Placeholder *struct {
			Type string `json:"type"`
		} `json:"placeholder"`
		Text *struct {
			TextElements []textElement `json:"textElements"`
		} `json:"text"`
	} `json:"shape"`
}

type textElement struct {
	TextRun *struct {
		Content string `json:"content"`
	} `json:"textRun"`
}

// NotesBySlide fetches the presentation and returns its speaker notes keyed
// by slide object id. Slides without notes are absent from the map.
func (c *Client) NotesBySlide(ctx context.Context, accessToken, presentationID string) (map[string]string, error) {
	endpoint := fmt.Sprintf(
		"%s/v1/presentations/%s?fields=slides(objectId,slideProperties.notesPage.pageElements)",
		c.cfg.BaseURL, presentationID,
	)

	pres := presentation{}
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(fmt.Errorf("slides api returned %d: %s", resp.StatusCode, string(data)))
		}
		if resp.StatusCode >= 300 {
			return fmt.Errorf("slides api returned %d: %s", resp.StatusCode, string(data))
		}

		if err := json.Unmarshal(data, &pres); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode presentation: %w", err))
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)); err != nil {
		return nil, fmt.Errorf("failed to fetch presentation %s: %w", presentationID, err)
	}

	notes := make(map[string]string, len(pres.Slides))
	for _, s := range pres.Slides {
		text := speakerNotes(s)
		if text != "" {
			notes[s.ObjectID] = text
		}
	}

	c.log.Debug("presentation notes fetched",
		slog.String("presentation_id", presentationID),
		slog.Int("slides_with_notes", len(notes)))
	return notes, nil
}

// speakerNotes joins the text of the BODY placeholder on the slide's notes
// page. That placeholder is where the Slides editor keeps speaker notes.
func speakerNotes(s slide) string {
	page := s.SlideProperties.NotesPage
	if page == nil {
		return ""
	}

	var b strings.Builder
	for _, element := range page.PageElements {
		shape := element.Shape
		if shape == nil || shape.Placeholder == nil || shape.Placeholder.Type != "BODY" {
			continue
		}
		if shape.Text == nil {
			continue
		}
		for _, te := range shape.Text.TextElements {
			if te.TextRun != nil {
				b.WriteString(te.TextRun.Content)
			}
		}
	}
	return strings.TrimSpace(b.String())
}
