package service

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/switchyardlabs/switchyard/internal/domain/complexity"
	"github.com/switchyardlabs/switchyard/internal/domain/intent"
)

// ComplexityService scores a request 1-10 from independent additive factors,
// detects workflow phases, and suggests a routing strategy. Deterministic
// pure functions; an Intent's domains/category/entities feed in but the
// service is independently callable.
type ComplexityService struct{}

// NewComplexityService creates a ComplexityService.
func NewComplexityService() *ComplexityService {
	return &ComplexityService{}
}

const baseScore = 3

// factor regexes, each applied at most once.
var (
	diagnosisRequired = regexp.MustCompile(`\b(root\s+cause|diagnose|troubleshoot|investigate|figure\s+out|why\s+is)\b`)
	ambiguousWording  = regexp.MustCompile(`\b(somehow|maybe|possibly|not\s+sure|unclear|some\s+way|or\s+something)\b`)
	crossSystem       = regexp.MustCompile(`\b(integrat(e|ion)|sync\s+between|hybrid|across\s+(systems|platforms|tenants)|connect\s+\w+\s+to)\b`)
	migrationWork     = regexp.MustCompile(`\b(migrat(e|ion)|cutover|transition\s+to|move\s+(to|from))\b`)
	urgentWording     = regexp.MustCompile(`\b(urgent(ly)?|asap|immediately|right\s+away|emergency|today)\b`)
	strategicWording  = regexp.MustCompile(`\b(should\s+(i|we)|strategy|strategic|roadmap|long[- ]term)\b`)
	customWork        = regexp.MustCompile(`\b(custom|bespoke|tailored|from\s+scratch|specialized)\b`)
	numericScale      = regexp.MustCompile(`\b(\d+)\s*(users?|servers?|devices?|mailboxes?|endpoints?|sites?|vms?|workstations?)\b`)
)

// scaleTiers maps wording to a deployment size tier. Only the large and
// enterprise tiers contribute to the score.
var scaleTiers = []struct {
	tier    string
	pattern *regexp.Regexp
}{
	{"enterprise", regexp.MustCompile(`\b(enterprise[- ]wide|company[- ]wide|org(anization)?[- ]wide|all\s+(users|sites|devices|tenants))\b`)},
	{"large", regexp.MustCompile(`\b(hundreds|thousands)\s+of\b|\bmulti[- ]site\b`)},
	{"medium", regexp.MustCompile(`\b(dozens\s+of|several\s+(teams|departments))\b`)},
	{"small", regexp.MustCompile(`\b(a\s+few|handful\s+of|single\s+(user|device|mailbox))\b`)},
}

// largeScaleCount is the numeric threshold above which an explicit scale
// entity counts as large.
const largeScaleCount = 50

// phasePatterns tests each of the eight fixed workflow phases. A phase is
// detected once per call no matter how many of its patterns match.
var phasePatterns = []struct {
	name     string
	patterns []*regexp.Regexp
}{
	{"diagnosis", []*regexp.Regexp{
		regexp.MustCompile(`\b(diagnose|root\s+cause|investigate|identify\s+the\s+(issue|problem))\b`),
		regexp.MustCompile(`\bwhy\s+(is|are|does|do)\b`),
	}},
	{"planning", []*regexp.Regexp{
		regexp.MustCompile(`\b(plan|planning|design|architect|scope|prepare)\b`),
	}},
	{"implementation", []*regexp.Regexp{
		regexp.MustCompile(`\b(implement|set\s?up|configure|deploy|install|build|create)\b`),
	}},
	{"remediation", []*regexp.Regexp{
		regexp.MustCompile(`\b(fix|remediate|resolve|repair|patch|correct)\b`),
	}},
	{"validation", []*regexp.Regexp{
		regexp.MustCompile(`\b(validate|verify|test|confirm|check\s+that)\b`),
	}},
	{"optimization", []*regexp.Regexp{
		regexp.MustCompile(`\b(optimi[sz]e|improve|tune|speed\s+up|reduce\s+(cost|latency))\b`),
	}},
	{"migration", []*regexp.Regexp{
		regexp.MustCompile(`\b(migrat(e|ion)|cutover|move\s+(to|from)|transition)\b`),
	}},
	{"monitoring", []*regexp.Regexp{
		regexp.MustCompile(`\b(monitor|alert(ing)?|track|watch|report\s+on)\b`),
	}},
}

// sequentialPhases is the subset of phases whose presence, combined with a
// high score and three or more detected phases, indicates an ordered
// prompt-chain workflow.
var sequentialPhases = []string{"diagnosis", "planning", "implementation"}

// Analyze derives a ComplexityAssessment from the raw text plus the
// classifier's domains, category and entities.
func (s *ComplexityService) Analyze(text string, domains []string, category intent.Category, entities map[string]any) *complexity.Assessment {
	lower := strings.ToLower(text)

	phases := detectPhases(lower)
	factors := make(map[string]int)

	nonGeneral := 0
	for _, d := range domains {
		if d != intent.DomainGeneral {
			nonGeneral++
		}
	}
	if nonGeneral >= 2 {
		factors["multi_domain"] = 2
	}
	if len(phases) >= 3 {
		factors["multi_phase"] = 2
	}
	if diagnosisRequired.MatchString(lower) {
		factors["diagnosis_required"] = 2
	}
	if ambiguousWording.MatchString(lower) {
		factors["ambiguous_requirements"] = 1
	}
	if isLargeScale(lower, entities) {
		factors["large_scale"] = 2
	}
	if crossSystem.MatchString(lower) {
		factors["cross_system_integration"] = 2
	}
	if migrationWork.MatchString(lower) {
		factors["migration"] = 2
	}
	if urgentWording.MatchString(lower) {
		factors["urgency"] = 1
	}
	if category == intent.CategoryStrategicPlanning || strategicWording.MatchString(lower) {
		factors["strategic_planning"] = 2
	}
	if customWork.MatchString(lower) {
		factors["custom_work"] = 1
	}

	score := baseScore
	for _, v := range factors {
		score += v
	}
	if score < complexity.MinScore {
		score = complexity.MinScore
	}
	if score > complexity.MaxScore {
		score = complexity.MaxScore
	}

	confidence := 0.70
	switch {
	case len(factors) >= 3:
		confidence += 0.15
	case len(factors) == 2:
		confidence += 0.10
	}
	if len(phases) >= 2 {
		confidence += 0.10
	}
	if confidence > 0.95 {
		confidence = 0.95
	}

	return &complexity.Assessment{
		Score:      score,
		Level:      complexity.LevelForScore(score),
		Factors:    factors,
		Phases:     phases,
		Confidence: confidence,
		Reasoning:  buildReasoning(score, factors, phases),
	}
}

// SuggestStrategy picks the routing strategy for an assessment. Rule order
// matters; the first match wins.
func (s *ComplexityService) SuggestStrategy(a *complexity.Assessment, domains []string) complexity.Strategy {
	if a.Score <= 4 && len(domains) == 1 {
		return complexity.StrategySingleAgent
	}
	if len(a.Phases) >= 3 && a.Score >= 7 && hasAnyPhase(a, sequentialPhases) {
		return complexity.StrategyPromptChain
	}
	if a.Score >= 5 || len(domains) > 1 || a.HasPhase("diagnosis") {
		return complexity.StrategySwarm
	}
	return complexity.StrategySingleAgent
}

// detectPhases returns detected phases in the fixed phase order.
func detectPhases(lower string) []string {
	var phases []string
	for _, p := range phasePatterns {
		for _, re := range p.patterns {
			if re.MatchString(lower) {
				phases = append(phases, p.name)
				break
			}
		}
	}
	return phases
}

// isLargeScale checks the wording tier table and any explicit numeric
// scale entity against the large-scale threshold.
func isLargeScale(lower string, entities map[string]any) bool {
	for _, t := range scaleTiers {
		if t.pattern.MatchString(lower) && (t.tier == "large" || t.tier == "enterprise") {
			return true
		}
	}

	if entities != nil {
		if scales, ok := entities["scale"].([]intent.Scale); ok {
			for _, sc := range scales {
				if sc.Count >= largeScaleCount {
					return true
				}
			}
		}
	}

	// Fall back to scanning the text when no entities were supplied.
	for _, m := range numericScale.FindAllStringSubmatch(lower, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= largeScaleCount {
			return true
		}
	}
	return false
}

func hasAnyPhase(a *complexity.Assessment, names []string) bool {
	for _, n := range names {
		if a.HasPhase(n) {
			return true
		}
	}
	return false
}

func buildReasoning(score int, factors map[string]int, phases []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "score %d (%s)", score, complexity.LevelForScore(score))

	if len(factors) > 0 {
		names := make([]string, 0, len(factors))
		for name := range factors {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s(+%d)", name, factors[name]))
		}
		fmt.Fprintf(&b, "; factors: %s", strings.Join(parts, ", "))
	}
	if len(phases) > 0 {
		fmt.Fprintf(&b, "; phases: %s", strings.Join(phases, ", "))
	}
	return b.String()
}
