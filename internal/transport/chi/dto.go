package chi

import (
	"github.com/kailas-cloud/neuromatch/internal/domain"
	"github.com/kailas-cloud/neuromatch/internal/usecase/retrieval"
)

// Error codes.
const (
	codeBadRequest       = "bad_request"
	codeUnauthorized     = "unauthorized"
	codeProcessingFailed = "processing_failed"
	codeIndexUnavailable = "index_unavailable"
	codeNotFound         = "not_found"
	codeInternal         = "internal_error"
)

const defaultCorpusTopK = 10

type matchRequest struct {
	ProfileText   string   `json:"profile_text"`
	CandidateJobs []string `json:"candidate_jobs"`
}

type matchResponse struct {
	JobRankings []domain.MatchResult `json:"job_rankings"`
}

type corpusSearchRequest struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k,omitempty"`
}

type corpusSearchResponse struct {
	Hits []retrieval.Hit `json:"hits"`
}

type corpusMatchRequest struct {
	ProfileText string `json:"profile_text"`
	TopK        *int   `json:"top_k,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status  string            `json:"status"`
	Checks  map[string]string `json:"checks"`
	Scorer  string            `json:"scorer,omitempty"`
	Vectors int               `json:"vectors"`
}

func topKOrDefault(p *int) int {
	if p == nil {
		return defaultCorpusTopK
	}
	return *p
}

func rankings(results []domain.MatchResult) matchResponse {
	if results == nil {
		results = []domain.MatchResult{}
	}
	return matchResponse{JobRankings: results}
}
