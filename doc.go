// Package neuromatch ranks candidate job postings against a candidate profile by semantic
// similarity, in-process and without the HTTP server.
//
// Each ranked job carries the profile and job tokens that contributed most to the match.
// Identical requests are answered from a result cache (in-memory by default, Redis or
// Valkey when configured).
//
//	m, _ := neuromatch.New(
//	    neuromatch.WithEmbedder(myEmbedder),
//	    neuromatch.WithDimensions(384),
//	)
//	defer m.Close()
//	res, _ := m.Match(ctx, "python developer", []string{"python engineer role", "chef position"})
//	for _, r := range res.Rankings {
//	    fmt.Println(r.JobText, r.Score, r.JobHighlights)
//	}
package neuromatch
