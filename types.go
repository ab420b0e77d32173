package neuromatch

import "github.com/kailas-cloud/neuromatch/internal/domain"

// Highlight is a salient token and its salience.
type Highlight struct {
	Token    string
	Salience float64
}

// MatchResult is one ranked job.
type MatchResult struct {
	JobText           string
	Score             float64
	ProfileHighlights []Highlight
	JobHighlights     []Highlight
}

// MatchResponse is the ranking, best match first.
type MatchResponse struct {
	Rankings []MatchResult
	CacheHit bool
}

func resultsFromDomain(rs []domain.MatchResult) []MatchResult {
	out := make([]MatchResult, len(rs))
	for i, r := range rs {
		out[i] = MatchResult{
			JobText:           r.JobText,
			Score:             r.Score,
			ProfileHighlights: highlightsFromDomain(r.ProfileHighlights),
			JobHighlights:     highlightsFromDomain(r.JobHighlights),
		}
	}
	return out
}

func highlightsFromDomain(hs []domain.Highlight) []Highlight {
	out := make([]Highlight, len(hs))
	for i, h := range hs {
		out[i] = Highlight{Token: h.Token, Salience: h.Salience}
	}
	return out
}
