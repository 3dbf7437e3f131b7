package domain

// ResourceType classifies a registered water object.
type ResourceType string

// Known resource types in the registry.
const (
	ResourceLake      ResourceType = "lake"
	ResourceCanal     ResourceType = "canal"
	ResourceReservoir ResourceType = "reservoir"
	ResourceRiver     ResourceType = "river"
	ResourceOther     ResourceType = "other"
)

// WaterType classifies water salinity.
type WaterType string

// Known water types.
const (
	WaterFresh    WaterType = "fresh"
	WaterNonFresh WaterType = "non-fresh"
)

// WaterRecord is one water object from the registry, as consumed by the
// retrieval tools. The engine never mutates records.
type WaterRecord struct {
	ID           string
	Name         string
	Region       string
	ResourceType ResourceType
	WaterType    WaterType

	// TechnicalCondition is the inspection grade, 1 (worst) to 5 (best).
	TechnicalCondition int
	// PassportYear is the year of the last technical passport, 0 if unknown.
	PassportYear int

	// Priority fields are restricted to expert callers.
	Priority      int
	PriorityLevel PriorityLevel
}
