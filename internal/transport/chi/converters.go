package chi

import (
	"github.com/kailas-cloud/neuromatch/internal/domain"
	"github.com/kailas-cloud/neuromatch/internal/usecase/retrieval"
)

func toMatchRequest(req matchRequest) domain.MatchRequest {
	return domain.MatchRequest{ProfileText: req.ProfileText, CandidateJobs: req.CandidateJobs}
}

func toSearchResponse(hits []retrieval.Hit) corpusSearchResponse {
	if hits == nil {
		hits = []retrieval.Hit{}
	}
	return corpusSearchResponse{Hits: hits}
}
