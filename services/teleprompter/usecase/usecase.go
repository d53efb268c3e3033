package usecase

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cuecard/backend/services/teleprompter/entity"
)

// Directive grammar: literal "time", one or two minute digits, exactly two
// second digits. Digit counts are the only validation; values like 0:99 are
// taken as written.
var (
	timeDirective     = regexp.MustCompile(`\[time\s+(\d{1,2}):(\d{2})\]`)
	timeDirectiveBare = regexp.MustCompile(`\[time\s+\d{1,2}:\d{2}\]`)
	noteMarker        = regexp.MustCompile(`\[note\s+([^\]]+)\]`)
)

type usecase struct{}

type Usecase interface {
	// Parse splits annotated speaker notes into ordered segments with
	// cumulative start offsets. Total function: malformed directives pass
	// through as literal text, never fail.
	Parse(notes string) entity.Content

	// FormatForDisplay rewrites [note content] markers into <note> tags for
	// the rendering layer.
	FormatForDisplay(text string) string

	// ScrollSpeed derives a scroll rate from segment height and duration,
	// falling back to defaultSpeed when no usable duration exists.
	ScrollSpeed(segmentHeight float64, durationSeconds *uint32, defaultSpeed float64) float64
}

func New() Usecase {
	return &usecase{}
}

func (u *usecase) Parse(notes string) entity.Content {
	var (
		segments       []entity.Segment
		pending        *uint32
		cumulativeTime uint32
		hasAnyTiming   bool
		lastEnd        int
	)

	emit := func(raw string) {
		cleaned := cleanForDisplay(raw)
		if cleaned == "" {
			return
		}
		segments = append(segments, entity.Segment{
			Text:             cleaned,
			DurationSeconds:  copyDuration(pending),
			StartTimeSeconds: cumulativeTime,
		})
		if pending != nil {
			cumulativeTime += *pending
		}
	}

	for _, loc := range timeDirective.FindAllStringSubmatchIndex(notes, -1) {
		minutes, _ := strconv.ParseUint(notes[loc[2]:loc[3]], 10, 32)
		seconds, _ := strconv.ParseUint(notes[loc[4]:loc[5]], 10, 32)
		duration := uint32(minutes)*60 + uint32(seconds)

		emit(notes[lastEnd:loc[0]])

		// A directive with no text before the next one supersedes the
		// previous pending duration; the discarded duration never reaches a
		// segment or the cumulative sum.
		pending = &duration
		hasAnyTiming = true
		lastEnd = loc[1]
	}

	emit(notes[lastEnd:])

	// No directives and no captured text: any non-blank input still yields
	// one untimed segment.
	if len(segments) == 0 && strings.TrimSpace(notes) != "" {
		segments = append(segments, entity.Segment{
			Text:             cleanForDisplay(notes),
			DurationSeconds:  nil,
			StartTimeSeconds: 0,
		})
	}

	var total *uint32
	if hasAnyTiming {
		sum := uint32(0)
		allTimed := true
		for _, s := range segments {
			if s.DurationSeconds == nil {
				allTimed = false
				break
			}
			sum += *s.DurationSeconds
		}
		if allTimed {
			total = &sum
		}
	}

	return entity.Content{
		Segments:             segments,
		TotalDurationSeconds: total,
		HasTiming:            hasAnyTiming,
	}
}

func (u *usecase) FormatForDisplay(text string) string {
	return noteMarker.ReplaceAllString(text, "<note>${1}</note>")
}

func (u *usecase) ScrollSpeed(segmentHeight float64, durationSeconds *uint32, defaultSpeed float64) float64 {
	if durationSeconds != nil && *durationSeconds > 0 {
		return segmentHeight / float64(*durationSeconds)
	}
	return defaultSpeed
}

// cleanForDisplay strips any remaining timing markers, normalizes CRLF and
// lone CR to LF, and trims surrounding whitespace.
func cleanForDisplay(text string) string {
	cleaned := timeDirectiveBare.ReplaceAllString(text, "")
	cleaned = strings.ReplaceAll(cleaned, "\r\n", "\n")
	cleaned = strings.ReplaceAll(cleaned, "\r", "\n")
	return strings.TrimSpace(cleaned)
}

func copyDuration(d *uint32) *uint32 {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
