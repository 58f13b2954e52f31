package model

import "math"

// Summary aggregates a result list into verdict counts.
type Summary struct {
	Total        int     `json:"total"`
	ValidCount   int     `json:"valid_count"`
	RiskyCount   int     `json:"risky_count"`
	InvalidCount int     `json:"invalid_count"`
	UnknownCount int     `json:"unknown_count"`
	AverageScore float64 `json:"average_score"`

	// Scored is how many results carried a score.
	// AverageScore is only meaningful when Scored is positive.
	Scored int `json:"scored"`
}

// NewSummary counts verdicts in results.
// The average score is rounded to one decimal place.
func NewSummary(results []Result) Summary {
	s := Summary{Total: len(results)}

	var scoreSum int
	for _, r := range results {
		switch r.Verdict() {
		case VerdictValid:
			s.ValidCount++
		case VerdictRisky:
			s.RiskyCount++
		case VerdictInvalid:
			s.InvalidCount++
		default:
			s.UnknownCount++
		}
		if r.Score != nil {
			s.Scored++
			scoreSum += *r.Score
		}
	}

	if s.Scored > 0 {
		avg := float64(scoreSum) / float64(s.Scored)
		s.AverageScore = math.Round(avg*10) / 10
	}

	return s
}
