package intent

import "regexp"

// intentPatterns pairs an intent with the surface forms that trigger it. The
// slice order is the tie-break: classification walks the list top to bottom
// and the first intent with any matching pattern wins, so an input mentioning
// both "nearby" and "count" classifies as nearby. Keep the order stable when
// adding patterns.
type intentPatterns struct {
	intent   Intent
	patterns []*regexp.Regexp
}

var classifierOrder = []intentPatterns{
	{IntentNearby, compileAll(
		`附近|周围|周边|距离.+?以内`,
		`(find|search).+?(near|around|within)`,
	)},
	{IntentBuffer, compileAll(
		`缓冲区|缓冲|buffer`,
		`create.+?buffer`,
	)},
	{IntentIntersection, compileAll(
		`相交|交集|重叠`,
		`intersect|overlap`,
	)},
	{IntentWithin, compileAll(
		`在.+?内|包含在`,
		`within|inside`,
	)},
	{IntentArea, compileAll(
		`面积|大小`,
		`area|size`,
	)},
	{IntentDistance, compileAll(
		`距离|相距`,
		`distance|how far`,
	)},
	{IntentCount, compileAll(
		`数量|个数|有多少`,
		`count|how many`,
	)},
}

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		compiled = append(compiled, regexp.MustCompile(`(?i)`+pattern))
	}
	return compiled
}

// Classify returns the first intent whose pattern set matches the text. The
// second return is false when no intent matched.
func Classify(text string) (Intent, bool) {
	for _, candidate := range classifierOrder {
		for _, pattern := range candidate.patterns {
			if pattern.MatchString(text) {
				return candidate.intent, true
			}
		}
	}
	return "", false
}
