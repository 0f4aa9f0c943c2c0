package workflow

import "strings"

// Rule routes a query to a step when Match holds.
type Rule struct {
	Name  string
	Match func(query string) bool
	Step  Step
}

// Keywords matches queries containing any of words, ignoring case.
func Keywords(words ...string) func(string) bool {
	return func(q string) bool {
		q = strings.ToLower(q)
		for _, w := range words {
			if strings.Contains(q, w) {
				return true
			}
		}
		return false
	}
}

// DefaultRules is the routing policy. Order matters: the first match wins.
var DefaultRules = []Rule{
	{Name: "ranking", Match: Keywords("rank", "top"), Step: StepRanking},
	{Name: "suitability", Match: Keywords("suitable", "suitability"), Step: StepSuitability},
	{Name: "elevation", Match: Keywords("elevation", "height"), Step: StepRaster},
}

// Route picks the step for query. A non-empty override wins over every
// rule; with no matching rule the query goes to vector analysis.
func Route(query string, override Step, rules []Rule) Step {
	if override != "" {
		return override
	}
	for _, r := range rules {
		if r.Match(query) {
			return r.Step
		}
	}
	return StepVector
}
