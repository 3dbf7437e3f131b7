package domain

// PriorityLevel buckets an inspection priority score.
type PriorityLevel string

// Priority levels, highest urgency first.
const (
	PriorityHigh   PriorityLevel = "high"
	PriorityMedium PriorityLevel = "medium"
	PriorityLow    PriorityLevel = "low"
)

// Score thresholds: >= 10 is high, 6..9 is medium, below 6 is low.
const (
	highPriorityThreshold   = 10
	mediumPriorityThreshold = 6
)

// PriorityScore computes the inspection priority of a record:
//
//	score = (6 - condition) * 3 + age_years
//
// where condition is the technical condition grade (1..5, 1 = worst) and
// age_years is the integer age of the passport relative to currentYear,
// clamped at zero. A missing passport year (0) contributes no age term.
func PriorityScore(condition, passportYear, currentYear int) int {
	score := (6 - condition) * 3
	if passportYear > 0 && currentYear > passportYear {
		score += currentYear - passportYear
	}
	return score
}

// LevelForScore maps a priority score to its level.
func LevelForScore(score int) PriorityLevel {
	switch {
	case score >= highPriorityThreshold:
		return PriorityHigh
	case score >= mediumPriorityThreshold:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// PriorityBreakdown is the full derivation of one record's priority score.
type PriorityBreakdown struct {
	RecordID      string
	Condition     int
	PassportYear  int
	CurrentYear   int
	ConditionTerm int // (6 - condition) * 3
	AgeTerm       int // max(0, currentYear - passportYear)
	Score         int
	Level         PriorityLevel
}

// ExplainPriority recomputes the priority formula for a record and returns
// every intermediate term. Pure function of its inputs.
func ExplainPriority(rec WaterRecord, currentYear int) PriorityBreakdown {
	b := PriorityBreakdown{
		RecordID:     rec.ID,
		Condition:    rec.TechnicalCondition,
		PassportYear: rec.PassportYear,
		CurrentYear:  currentYear,
	}
	b.ConditionTerm = (6 - rec.TechnicalCondition) * 3
	if rec.PassportYear > 0 && currentYear > rec.PassportYear {
		b.AgeTerm = currentYear - rec.PassportYear
	}
	b.Score = b.ConditionTerm + b.AgeTerm
	b.Level = LevelForScore(b.Score)
	return b
}
