package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type CaptionType string

const (
	CaptionHook    CaptionType = "hook"
	CaptionValue   CaptionType = "value"
	CaptionEmotion CaptionType = "emotion"
)

// KnownCaptionType reports whether v is one of the closed caption type set.
func KnownCaptionType(v CaptionType) bool {
	switch v {
	case CaptionHook, CaptionValue, CaptionEmotion:
		return true
	default:
		return false
	}
}

type Caption struct {
	Type CaptionType `json:"type"`
	Text string      `json:"text"`
}

// KeyMoment is one derived clip candidate inside an Analysis.
// Times are offsets into the source video, in seconds.
type KeyMoment struct {
	StartTime     float64   `json:"startTime"`
	EndTime       float64   `json:"endTime"`
	Summary       string    `json:"summary"`
	SuggestedHook string    `json:"suggestedHook"`
	ViralScore    int       `json:"viralScore"`
	Captions      []Caption `json:"captions"`
}

// Duration of the moment in seconds.
func (m KeyMoment) Duration() float64 {
	return m.EndTime - m.StartTime
}

// RawAnalysis is the unvalidated capability output. It becomes an Analysis
// only after passing ValidateRawAnalysis and being committed.
type RawAnalysis struct {
	KeyMoments     []KeyMoment `json:"keyMoments"`
	OverallSummary string      `json:"overallSummary,omitempty"`
	TotalDuration  *float64    `json:"totalDuration,omitempty"`
}

// Analysis is the committed artifact. At most one exists per video; the
// unique constraint on VideoID in storage is the idempotency guard.
type Analysis struct {
	AnalysisID     uuid.UUID
	VideoID        uuid.UUID
	UserID         uuid.UUID
	KeyMoments     []KeyMoment
	OverallSummary string
	TotalDuration  *float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TopMoments returns up to limit moments ordered by descending viral score.
// The receiver's moment slice is not mutated.
func (a Analysis) TopMoments(limit int) []KeyMoment {
	if limit <= 0 {
		limit = 3
	}
	out := make([]KeyMoment, len(a.KeyMoments))
	copy(out, a.KeyMoments)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ViralScore > out[j].ViralScore
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
