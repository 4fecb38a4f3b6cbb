// Package intent matches free-text spatial questions against a small fixed
// taxonomy and pulls out the values the SQL templates need. It is not a
// general language model: unmatched text is an expected outcome that callers
// report back as guidance.
package intent

type Intent string

const (
	IntentNearby       Intent = "nearby"
	IntentBuffer       Intent = "buffer"
	IntentIntersection Intent = "intersection"
	IntentWithin       Intent = "within"
	IntentArea         Intent = "area"
	IntentDistance     Intent = "distance"
	IntentCount        Intent = "count"
)

// Slots carries the values extracted from the question. Extraction is best
// effort and independent per field; which fields are required is decided by
// the SQL generator per intent.
type Slots struct {
	Table        string
	SecondTable  string
	Schema       string
	Longitude    float64
	Latitude     float64
	HasPoint     bool
	RadiusMeters float64
	HasRadius    bool
	GeometryWKT  string
}
