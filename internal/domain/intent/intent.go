// Package intent provides the domain model for classified user requests.
package intent

// DomainGeneral is the fallback domain when no keyword table matches.
const DomainGeneral = "general"

// Category is the request category assigned by the classifier.
type Category string

// Request categories. Classification always resolves to one of these;
// an unclear request defaults to CategoryOperationalTask.
const (
	CategoryStrategicPlanning  Category = "strategic_planning"
	CategoryOperationalTask    Category = "operational_task"
	CategoryTroubleshooting    Category = "troubleshooting"
	CategoryInformationRequest Category = "information_request"
	CategoryCostAnalysis       Category = "cost_analysis"
)

// Categories returns all valid request categories.
func Categories() []Category {
	return []Category{
		CategoryStrategicPlanning,
		CategoryOperationalTask,
		CategoryTroubleshooting,
		CategoryInformationRequest,
		CategoryCostAnalysis,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryStrategicPlanning, CategoryOperationalTask,
		CategoryTroubleshooting, CategoryInformationRequest, CategoryCostAnalysis:
		return true
	}
	return false
}

// Scale is a numeric scale entity extracted from the request,
// e.g. "500 users" or "12 servers".
type Scale struct {
	Count int    `json:"count"`
	Unit  string `json:"unit"`
}

// Intent is the classification result for a single request.
// It is immutable after creation except for the lazy confidence
// adjustment applied by the complexity analyzer.
type Intent struct {
	Category       Category       `json:"category"`
	Domains        []string       `json:"domains"`
	ComplexitySeed int            `json:"complexity_seed"`
	Confidence     float64        `json:"confidence"`
	Entities       map[string]any `json:"entities"`
}

// NonGeneralDomains returns the detected domains excluding "general".
func (i *Intent) NonGeneralDomains() []string {
	var out []string
	for _, d := range i.Domains {
		if d != DomainGeneral {
			out = append(out, d)
		}
	}
	return out
}

// HasDomain reports whether the intent includes the given domain.
func (i *Intent) HasDomain(name string) bool {
	for _, d := range i.Domains {
		if d == name {
			return true
		}
	}
	return false
}

// AdjustForComplexity lowers the classification confidence when the
// complexity score lands at an extreme (very high or very low scores
// indicate the request was harder to read than the keyword match
// suggested). Applied once, lazily, by the complexity analyzer.
func (i *Intent) AdjustForComplexity(score int) {
	if score >= 9 {
		i.Confidence -= 0.05
	}
	if score <= 2 {
		i.Confidence -= 0.05
	}
	if i.Confidence < 0 {
		i.Confidence = 0
	}
}
