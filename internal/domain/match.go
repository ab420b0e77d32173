package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Highlight is a single salient token with its salience score.
// It serializes as a two-element JSON array: ["token", 0.93].
type Highlight struct {
	Token    string
	Salience float64
}

// MarshalJSON encodes the highlight as a [token, salience] pair.
func (h Highlight) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{h.Token, h.Salience})
}

// UnmarshalJSON decodes a [token, salience] pair.
func (h *Highlight) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("decode highlight: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("decode highlight: expected 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &h.Token); err != nil {
		return fmt.Errorf("decode highlight token: %w", err)
	}
	if err := json.Unmarshal(pair[1], &h.Salience); err != nil {
		return fmt.Errorf("decode highlight salience: %w", err)
	}
	return nil
}

// MatchResult is one ranked candidate with its score and token-level explanation.
type MatchResult struct {
	JobText           string      `json:"job_text"`
	Score             float64     `json:"score"`
	ProfileHighlights []Highlight `json:"profile_highlights"`
	JobHighlights     []Highlight `json:"job_highlights"`
}

// MatchRequest asks to rank candidate jobs against a profile.
type MatchRequest struct {
	ProfileText   string
	CandidateJobs []string
}

// Validate checks request preconditions before any embedding work happens.
func (r MatchRequest) Validate() error {
	if strings.TrimSpace(r.ProfileText) == "" {
		return fmt.Errorf("%w: profile_text is required", ErrInvalidRequest)
	}
	if len(r.CandidateJobs) == 0 {
		return fmt.Errorf("%w: candidate_jobs is required", ErrInvalidRequest)
	}
	for i, job := range r.CandidateJobs {
		if strings.TrimSpace(job) == "" {
			return fmt.Errorf("%w: candidate_jobs[%d] is empty", ErrInvalidRequest, i)
		}
	}
	return nil
}
