package domain

import "strings"

// KeyPrefix namespaces every Redis key written by this service.
const KeyPrefix = "hydrolens:"

// Filters are the structured constraints a caller may attach to a query.
// Zero values mean "not set".
type Filters struct {
	RecordID     string
	Region       string
	ResourceType string
	WaterType    string
	ConditionMin int // technical condition lower bound, 1..5
	ConditionMax int // technical condition upper bound, 1..5
	YearFrom     int // passport year lower bound
	YearTo       int // passport year upper bound
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return f == Filters{}
}

// HasAttributeFilter reports whether any filter besides the record id is set.
func (f Filters) HasAttributeFilter() bool {
	g := f
	g.RecordID = ""
	return !g.IsZero()
}

// Query is the immutable input of one orchestration session.
type Query struct {
	Text     string
	Role     Role
	Language string // BCP 47-ish tag, e.g. "en", "ru"; empty means "en"
	Filters  Filters
}

// Validate checks the query for structural correctness.
func (q Query) Validate() error {
	if strings.TrimSpace(q.Text) == "" && q.Filters.IsZero() {
		return ErrEmptyQuery
	}
	if _, err := ParseRole(string(q.Role)); err != nil {
		return err
	}
	return nil
}
