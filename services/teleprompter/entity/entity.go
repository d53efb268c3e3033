package entity

// Segment is one displayable chunk of speaker-note text. Timing markers are
// stripped from Text; note markers are preserved verbatim for the renderer.
type Segment struct {
	Text string `json:"text"`
	// DurationSeconds is set only when a [time mm:ss] directive applied to
	// this chunk; nil means "scroll at the caller's default speed".
	DurationSeconds  *uint32 `json:"duration_seconds,omitempty"`
	StartTimeSeconds uint32  `json:"start_time_seconds"`
}

// Content is a parsed teleprompter script.
type Content struct {
	Segments []Segment `json:"segments"`
	// TotalDurationSeconds is set only when every segment carries a
	// duration; mixed timed/untimed content has no reliable total.
	TotalDurationSeconds *uint32 `json:"total_duration_seconds,omitempty"`
	HasTiming            bool    `json:"has_timing"`
}
