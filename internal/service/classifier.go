package service

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/switchyardlabs/switchyard/internal/domain/intent"
)

// ClassifierService maps free-text requests to an Intent: category, domains,
// extracted entities and a classification confidence. Classification never
// fails; unclear requests resolve to the "general" domain and the
// operational_task category.
type ClassifierService struct{}

// NewClassifierService creates a ClassifierService.
func NewClassifierService() *ClassifierService {
	return &ClassifierService{}
}

// domainKeywords maps a domain to the keyword substrings that select it.
// Matching is plain substring search over the lower-cased request.
var domainKeywords = map[string][]string{
	"dns": {
		"dns", "spf", "dkim", "dmarc", "mx record", "cname",
		"a record", "txt record", "nameserver", "dns zone", "domain record",
	},
	"azure": {
		"azure", "microsoft 365", "m365", "office 365", "exchange",
		"sharepoint", "intune", "entra", "active directory", "tenant",
		"conditional access",
	},
	"endpoint": {
		"endpoint", "device", "laptop", "workstation", "desktop",
		"patch", "antivirus", "defender", "autopilot",
	},
	"security": {
		"security", "phishing", "breach", "malware", "ransomware",
		"firewall", "mfa", "vulnerability", "compliance", "audit",
	},
	"network": {
		"network", "vpn", "router", "switch", "wifi", "bandwidth",
		"latency", "subnet", "dhcp", "gateway",
	},
	"backup": {
		"backup", "restore", "snapshot", "retention", "disaster recovery",
	},
}

// categoryPatterns scores each category by counting regex matches.
var categoryPatterns = map[intent.Category][]*regexp.Regexp{
	intent.CategoryStrategicPlanning: {
		regexp.MustCompile(`\bshould\s+(i|we)\b`),
		regexp.MustCompile(`\b(strategy|strategic|roadmap|long[- ]term)\b`),
		regexp.MustCompile(`\b(evaluate|assess(ment)?|compare|worth\s+(it|doing))\b`),
		regexp.MustCompile(`\bpros\s+and\s+cons\b`),
		regexp.MustCompile(`\b(plan(ning)?\s+for|prepare\s+for)\b`),
	},
	intent.CategoryOperationalTask: {
		regexp.MustCompile(`\b(set\s?up|configure|create|install|deploy|provision)\b`),
		regexp.MustCompile(`\b(add|remove|enable|disable|update|change|renew|migrate)\b`),
		regexp.MustCompile(`\b(reset|unlock|assign|revoke)\b`),
	},
	intent.CategoryTroubleshooting: {
		regexp.MustCompile(`\b(troubleshoot|diagnose|debug|investigate)\b`),
		regexp.MustCompile(`\bnot\s+(working|receiving|syncing|connecting)\b`),
		regexp.MustCompile(`\b(error|failing|failed|broken|down|outage|issue|problem)\b`),
		regexp.MustCompile(`\bcan'?t\s+(access|connect|log\s?in|send|receive)\b`),
		regexp.MustCompile(`\b(slow|intermittent|degraded)\b`),
	},
	intent.CategoryInformationRequest: {
		regexp.MustCompile(`^(what|how|why|when|where|which|who)\b`),
		regexp.MustCompile(`\b(explain|tell\s+me|describe)\b`),
		regexp.MustCompile(`\bdifference\s+between\b`),
		regexp.MustCompile(`\b(documentation|docs|guide)\b`),
	},
	intent.CategoryCostAnalysis: {
		regexp.MustCompile(`\b(cost|price|pricing|budget|spend|billing|invoice)\b`),
		regexp.MustCompile(`\b(license|licensing|subscription)s?\b`),
		regexp.MustCompile(`\b(save\s+money|cheaper|reduce\s+spend)\b`),
	},
}

// Fixed category boosts.
var (
	shouldWePhrase  = regexp.MustCompile(`\bshould\s+(i|we)\b`)
	imperativeStart = regexp.MustCompile(`^(set\s?up|configure|create|install|deploy|add|remove|update|fix|enable|disable|migrate|renew)\b`)
)

// Entity extraction patterns.
var (
	emailPattern    = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	hostnamePattern = regexp.MustCompile(`\b[a-z0-9][a-z0-9-]*(?:\.[a-z0-9-]+)*\.[a-z]{2,}\b`)
	costPattern     = regexp.MustCompile(`\$\s?(\d+(?:,\d{3})*(?:\.\d+)?)`)
	scalePattern    = regexp.MustCompile(`\b(\d+)\s*(users?|servers?|devices?|mailboxes?|endpoints?|sites?|vms?|workstations?)\b`)
)

// productVocabulary is the fixed set of product/service names extracted
// case-insensitively.
var productVocabulary = []string{
	"exchange online", "microsoft 365", "sharepoint", "teams", "intune",
	"defender", "entra id", "azure ad", "autopilot", "onedrive",
}

// Classify maps raw text to an Intent. Pure function of its input; it
// always returns a result.
func (s *ClassifierService) Classify(text string) *intent.Intent {
	lower := strings.ToLower(text)

	domains := detectDomains(lower)
	category := detectCategory(lower)
	entities := extractEntities(text, lower, domains)

	nonGeneral := 0
	for _, d := range domains {
		if d != intent.DomainGeneral {
			nonGeneral++
		}
	}

	confidence := 0.70
	if nonGeneral > 0 {
		confidence += 0.15
	}
	if nonGeneral > 1 {
		confidence += 0.05
	}
	if confidence > 0.95 {
		confidence = 0.95
	}

	return &intent.Intent{
		Category:       category,
		Domains:        domains,
		ComplexitySeed: 3 + min(nonGeneral, 2),
		Confidence:     confidence,
		Entities:       entities,
	}
}

// detectDomains returns every domain whose keyword table matches, in a
// stable order. Falls back to the sole domain "general".
func detectDomains(lower string) []string {
	// Iterate a fixed order so output is deterministic.
	order := []string{"dns", "azure", "endpoint", "security", "network", "backup"}

	var domains []string
	for _, domain := range order {
		for _, kw := range domainKeywords[domain] {
			if strings.Contains(lower, kw) {
				domains = append(domains, domain)
				break
			}
		}
	}
	if len(domains) == 0 {
		return []string{intent.DomainGeneral}
	}
	return domains
}

// detectCategory scores each category by pattern hits plus two fixed
// boosts, returning the argmax. A total-zero tie defaults to
// operational_task.
func detectCategory(lower string) intent.Category {
	scores := make(map[intent.Category]int, len(categoryPatterns))
	for cat, patterns := range categoryPatterns {
		for _, p := range patterns {
			scores[cat] += len(p.FindAllString(lower, -1))
		}
	}

	if shouldWePhrase.MatchString(lower) {
		scores[intent.CategoryStrategicPlanning] += 2
	}
	if imperativeStart.MatchString(lower) {
		scores[intent.CategoryOperationalTask]++
	}

	best := intent.CategoryOperationalTask
	bestScore := 0
	for _, cat := range intent.Categories() {
		if scores[cat] > bestScore {
			best = cat
			bestScore = scores[cat]
		}
	}
	return best
}

// extractEntities performs domain-gated entity extraction.
func extractEntities(text, lower string, domains []string) map[string]any {
	entities := make(map[string]any)

	if emails := emailPattern.FindAllString(text, -1); len(emails) > 0 {
		entities["emails"] = emails
	}

	// Hostnames are only meaningful for DNS work; strip emails first so the
	// mailbox domain part is not double-counted.
	if containsDomain(domains, "dns") {
		stripped := emailPattern.ReplaceAllString(lower, " ")
		if hosts := hostnamePattern.FindAllString(stripped, -1); len(hosts) > 0 {
			entities["domain_names"] = dedupe(hosts)
		}
	}

	if matches := costPattern.FindAllStringSubmatch(text, -1); len(matches) > 0 {
		var costs []float64
		for _, m := range matches {
			raw := strings.ReplaceAll(m[1], ",", "")
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				costs = append(costs, v)
			}
		}
		if len(costs) > 0 {
			entities["costs"] = costs
		}
	}

	if matches := scalePattern.FindAllStringSubmatch(lower, -1); len(matches) > 0 {
		var scales []intent.Scale
		for _, m := range matches {
			if n, err := strconv.Atoi(m[1]); err == nil {
				scales = append(scales, intent.Scale{Count: n, Unit: m[2]})
			}
		}
		if len(scales) > 0 {
			entities["scale"] = scales
		}
	}

	var products []string
	for _, p := range productVocabulary {
		if strings.Contains(lower, p) {
			products = append(products, p)
		}
	}
	if len(products) > 0 {
		entities["products"] = products
	}

	return entities
}

func containsDomain(domains []string, name string) bool {
	for _, d := range domains {
		if d == name {
			return true
		}
	}
	return false
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
