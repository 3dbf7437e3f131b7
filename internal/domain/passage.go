package domain

// PassageHit is one passport-text chunk returned by the vector index.
type PassageHit struct {
	RecordID string
	Section  string
	Content  string
	// Score is cosine similarity mapped to [0,1], highest first.
	Score float64
}
