package records

import (
	"strconv"
	"strings"

	"github.com/hydrolens/hydrolens/internal/db"
	"github.com/hydrolens/hydrolens/internal/domain"
)

// Hash field names for record documents.
const (
	fieldID            = "id"
	fieldName          = "name"
	fieldRegion        = "region"
	fieldResourceType  = "resource_type"
	fieldWaterType     = "water_type"
	fieldCondition     = "condition"
	fieldPassportYear  = "passport_year"
	fieldPriority      = "priority"
	fieldPriorityLevel = "priority_level"
)

func recordFromFields(fields map[string]string) domain.WaterRecord {
	rec := domain.WaterRecord{
		ID:           fields[fieldID],
		Name:         fields[fieldName],
		Region:       fields[fieldRegion],
		ResourceType: domain.ResourceType(fields[fieldResourceType]),
		WaterType:    domain.WaterType(fields[fieldWaterType]),
	}
	rec.TechnicalCondition, _ = strconv.Atoi(fields[fieldCondition])
	rec.PassportYear, _ = strconv.Atoi(fields[fieldPassportYear])
	rec.Priority, _ = strconv.Atoi(fields[fieldPriority])
	rec.PriorityLevel = domain.PriorityLevel(fields[fieldPriorityLevel])
	return rec
}

func recordToFields(rec domain.WaterRecord) map[string]string {
	return map[string]string{
		fieldID:            rec.ID,
		fieldName:          rec.Name,
		fieldRegion:        rec.Region,
		fieldResourceType:  string(rec.ResourceType),
		fieldWaterType:     string(rec.WaterType),
		fieldCondition:     strconv.Itoa(rec.TechnicalCondition),
		fieldPassportYear:  strconv.Itoa(rec.PassportYear),
		fieldPriority:      strconv.Itoa(rec.Priority),
		fieldPriorityLevel: string(rec.PriorityLevel),
	}
}

// buildQuery translates structured filters into an FT.SEARCH query string.
// Returns "*" when no filter is set.
func buildQuery(f domain.Filters) string {
	var parts []string

	if f.Region != "" {
		parts = append(parts, "@"+fieldRegion+":{"+db.EscapeTag(f.Region)+"}")
	}
	if f.ResourceType != "" {
		parts = append(parts, "@"+fieldResourceType+":{"+db.EscapeTag(f.ResourceType)+"}")
	}
	if f.WaterType != "" {
		parts = append(parts, "@"+fieldWaterType+":{"+db.EscapeTag(f.WaterType)+"}")
	}
	if f.ConditionMin > 0 || f.ConditionMax > 0 {
		parts = append(parts, numericRange(fieldCondition, f.ConditionMin, f.ConditionMax))
	}
	if f.YearFrom > 0 || f.YearTo > 0 {
		parts = append(parts, numericRange(fieldPassportYear, f.YearFrom, f.YearTo))
	}

	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, " ")
}

func numericRange(field string, lo, hi int) string {
	loStr := "-inf"
	if lo > 0 {
		loStr = strconv.Itoa(lo)
	}
	hiStr := "+inf"
	if hi > 0 {
		hiStr = strconv.Itoa(hi)
	}
	return "@" + field + ":[" + loStr + " " + hiStr + "]"
}
