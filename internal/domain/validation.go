package domain

import "fmt"

const (
	MinKeyMoments = 3
	MaxKeyMoments = 5

	MaxSummaryLen        = 500
	MaxSuggestedHookLen  = 200
	MaxCaptionTextLen    = 150
	MaxOverallSummaryLen = 1000

	MinViralScore = 1
	MaxViralScore = 10

	CaptionsPerMoment = 3
)

// ValidateRawAnalysis enforces the structural invariants of an analysis
// payload, in order, stopping at the first violation. It runs before any
// storage round-trip so malformed capability output never reaches a write.
//
// Caption types inside a moment are deliberately not required to be
// distinct: three captions of any known type pass, matching how the
// artifact schema has always behaved.
func ValidateRawAnalysis(raw RawAnalysis) error {
	if n := len(raw.KeyMoments); n < MinKeyMoments || n > MaxKeyMoments {
		return &ValidationError{
			Field:       "keyMoments",
			MomentIndex: -1,
			Reason:      fmt.Sprintf("must contain between %d and %d moments, got %d", MinKeyMoments, MaxKeyMoments, n),
		}
	}
	for i, m := range raw.KeyMoments {
		if m.StartTime < 0 {
			return &ValidationError{Field: "startTime", MomentIndex: i, Reason: "must be >= 0"}
		}
		if m.EndTime <= m.StartTime {
			return &ValidationError{Field: "endTime", MomentIndex: i, Reason: "must be greater than startTime"}
		}
		if len(m.Summary) > MaxSummaryLen {
			return &ValidationError{Field: "summary", MomentIndex: i, Reason: fmt.Sprintf("must be <= %d chars", MaxSummaryLen)}
		}
		if len(m.SuggestedHook) > MaxSuggestedHookLen {
			return &ValidationError{Field: "suggestedHook", MomentIndex: i, Reason: fmt.Sprintf("must be <= %d chars", MaxSuggestedHookLen)}
		}
		if m.ViralScore < MinViralScore || m.ViralScore > MaxViralScore {
			return &ValidationError{Field: "viralScore", MomentIndex: i, Reason: fmt.Sprintf("must be between %d and %d", MinViralScore, MaxViralScore)}
		}
		if len(m.Captions) != CaptionsPerMoment {
			return &ValidationError{Field: "captions", MomentIndex: i, Reason: fmt.Sprintf("must contain exactly %d captions, got %d", CaptionsPerMoment, len(m.Captions))}
		}
		for _, c := range m.Captions {
			if !KnownCaptionType(c.Type) {
				return &ValidationError{Field: "captions.type", MomentIndex: i, Reason: fmt.Sprintf("unknown caption type %q", c.Type)}
			}
			if len(c.Text) > MaxCaptionTextLen {
				return &ValidationError{Field: "captions.text", MomentIndex: i, Reason: fmt.Sprintf("must be <= %d chars", MaxCaptionTextLen)}
			}
		}
	}
	if len(raw.OverallSummary) > MaxOverallSummaryLen {
		return &ValidationError{Field: "overallSummary", MomentIndex: -1, Reason: fmt.Sprintf("must be <= %d chars", MaxOverallSummaryLen)}
	}
	if raw.TotalDuration != nil && *raw.TotalDuration < 0 {
		return &ValidationError{Field: "totalDuration", MomentIndex: -1, Reason: "must be >= 0"}
	}
	return nil
}
