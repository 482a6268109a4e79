// Package complexity provides the domain model for request complexity
// assessment and routing strategy selection.
package complexity

// Score bounds for an assessment.
const (
	MinScore = 1
	MaxScore = 10
)

// Level buckets a complexity score for human consumption.
type Level string

// Complexity levels, from least to most involved.
const (
	LevelTrivial     Level = "trivial"
	LevelSimple      Level = "simple"
	LevelModerate    Level = "moderate"
	LevelComplex     Level = "complex"
	LevelVeryComplex Level = "very_complex"
)

// LevelForScore maps a score in [1,10] to its unique level bucket.
func LevelForScore(score int) Level {
	switch {
	case score <= 2:
		return LevelTrivial
	case score <= 4:
		return LevelSimple
	case score <= 6:
		return LevelModerate
	case score <= 8:
		return LevelComplex
	default:
		return LevelVeryComplex
	}
}

// Strategy is the execution shape chosen for a request.
type Strategy string

// Routing strategies.
const (
	StrategySingleAgent Strategy = "single_agent"
	StrategySwarm       Strategy = "swarm"
	StrategyPromptChain Strategy = "prompt_chain"
)

// Assessment is the deterministic complexity analysis of a request.
type Assessment struct {
	Score      int            `json:"score"`
	Level      Level          `json:"level"`
	Factors    map[string]int `json:"contributing_factors"`
	Phases     []string       `json:"detected_phases"`
	Confidence float64        `json:"confidence"`
	Reasoning  string         `json:"reasoning"`
}

// HasPhase reports whether the given workflow phase was detected.
func (a *Assessment) HasPhase(name string) bool {
	for _, p := range a.Phases {
		if p == name {
			return true
		}
	}
	return false
}
