package models

// Candidate is one ranked match returned by the search backend.
type Candidate struct {
	ID                string   `json:"candidate_id"`
	Name              string   `json:"candidate_name"`
	Score             float64  `json:"score"`
	Explanation       string   `json:"explanation"`
	Skills            []string `json:"skills"`
	ExperienceSummary string   `json:"experience_summary"`
	// ResumeLocator is an opaque backend path. Only its final segment is meaningful.
	ResumeLocator string `json:"resume_path"`
}

// MatchPercent is the score rounded to a whole percentage.
func (c Candidate) MatchPercent() int {
	switch {
	case c.Score <= 0:
		return 0
	case c.Score >= 1:
		return 100
	}
	return int(c.Score*100 + 0.5)
}
