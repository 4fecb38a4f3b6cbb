// Package sqlgen renders one deterministic PostGIS statement per intent.
// Values are embedded as rendered text: identifiers cannot be bound as
// parameters, so they are checked against a strict character set before
// interpolation, and every numeric value goes through strconv. The execution
// gate downstream is the second line of defense, the database role the third.
package sqlgen

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/terrasql/terrasql/internal/catalog"
	"github.com/terrasql/terrasql/internal/intent"
)

const DefaultRowLimit = 100

// MissingSlotError reports a required slot the extractors did not fill. It is
// a classification-stage failure, never a malformed statement.
type MissingSlotError struct {
	Slot string
}

func (e *MissingSlotError) Error() string {
	return fmt.Sprintf("missing required slot %q", e.Slot)
}

// BadIdentifierError reports an identifier that failed the allowed-character
// check and therefore cannot be interpolated.
type BadIdentifierError struct {
	Identifier string
}

func (e *BadIdentifierError) Error() string {
	return fmt.Sprintf("identifier %q contains characters outside [A-Za-z0-9_]", e.Identifier)
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Generator struct {
	RowLimit int
}

func (g *Generator) rowLimit() int {
	if g == nil || g.RowLimit <= 0 {
		return DefaultRowLimit
	}
	return g.RowLimit
}

// Generate renders the statement for one classified intent. The secondary
// descriptor is consulted only for intersection queries, where a second table
// participates. Statements whose result set is otherwise unbounded always end
// in an explicit LIMIT.
func (g *Generator) Generate(it intent.Intent, slots intent.Slots, primary catalog.GeometryDescriptor, secondary *catalog.GeometryDescriptor) (string, error) {
	schema := slots.Schema
	if schema == "" {
		schema = "public"
	}
	if slots.Table == "" {
		return "", &MissingSlotError{Slot: "table_name"}
	}
	if err := checkIdentifiers(schema, slots.Table, primary.Column); err != nil {
		return "", err
	}

	switch it {
	case intent.IntentNearby:
		return g.generateNearby(schema, slots, primary)
	case intent.IntentBuffer:
		return g.generateBuffer(schema, slots, primary)
	case intent.IntentIntersection:
		return g.generateIntersection(schema, slots, primary, secondary)
	case intent.IntentWithin:
		return g.generateWithin(schema, slots, primary)
	case intent.IntentArea:
		return g.generateArea(schema, slots, primary)
	case intent.IntentDistance:
		return g.generateDistance(schema, slots, primary)
	case intent.IntentCount:
		return g.generateCount(schema, slots)
	default:
		return "", fmt.Errorf("unsupported intent %q", it)
	}
}

func (g *Generator) generateNearby(schema string, slots intent.Slots, descriptor catalog.GeometryDescriptor) (string, error) {
	if !slots.HasPoint {
		return "", &MissingSlotError{Slot: "coordinates"}
	}
	if !slots.HasRadius {
		return "", &MissingSlotError{Slot: "radius_meters"}
	}
	point, err := pointWKT(slots.Longitude, slots.Latitude)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`-- Features within %s meters of (%s, %s)
SELECT
    *,
    ST_Distance(
        ST_Transform(%s, 4326)::geography,
        ST_GeogFromText('SRID=4326;%s')
    ) AS distance_meters
FROM %s.%s
WHERE ST_DWithin(
    ST_Transform(%s, 4326)::geography,
    ST_GeogFromText('SRID=4326;%s'),
    %s
)
ORDER BY distance_meters
LIMIT %d;`,
		formatFloat(slots.RadiusMeters), formatFloat(slots.Longitude), formatFloat(slots.Latitude),
		descriptor.Column, point,
		schema, slots.Table,
		descriptor.Column, point, formatFloat(slots.RadiusMeters),
		g.rowLimit()), nil
}

func (g *Generator) generateBuffer(schema string, slots intent.Slots, descriptor catalog.GeometryDescriptor) (string, error) {
	if !slots.HasRadius {
		return "", &MissingSlotError{Slot: "radius_meters"}
	}

	return fmt.Sprintf(`-- Buffer of %s meters around each feature
SELECT
    *,
    ST_AsText(ST_Buffer(ST_Transform(%s, 3857), %s)) AS buffer_geom,
    ST_Area(ST_Buffer(ST_Transform(%s, 3857), %s)) AS buffer_area_sqm
FROM %s.%s
LIMIT %d;`,
		formatFloat(slots.RadiusMeters),
		descriptor.Column, formatFloat(slots.RadiusMeters),
		descriptor.Column, formatFloat(slots.RadiusMeters),
		schema, slots.Table,
		g.rowLimit()), nil
}

func (g *Generator) generateIntersection(schema string, slots intent.Slots, primary catalog.GeometryDescriptor, secondary *catalog.GeometryDescriptor) (string, error) {
	if slots.SecondTable == "" || secondary == nil {
		return "", &MissingSlotError{Slot: "second_table"}
	}
	if err := checkIdentifiers(slots.SecondTable, secondary.Column); err != nil {
		return "", err
	}

	return fmt.Sprintf(`-- Features of %s.%s intersecting %s.%s
SELECT
    a.*,
    ST_AsText(ST_Intersection(a.%s, b.%s)) AS intersection_geom,
    ST_Area(ST_Transform(ST_Intersection(a.%s, b.%s), 3857)) AS intersection_area_sqm
FROM %s.%s a
JOIN %s.%s b ON ST_Intersects(a.%s, b.%s)
LIMIT %d;`,
		schema, slots.Table, schema, slots.SecondTable,
		primary.Column, secondary.Column,
		primary.Column, secondary.Column,
		schema, slots.Table,
		schema, slots.SecondTable,
		primary.Column, secondary.Column,
		g.rowLimit()), nil
}

func (g *Generator) generateWithin(schema string, slots intent.Slots, descriptor catalog.GeometryDescriptor) (string, error) {
	if strings.TrimSpace(slots.GeometryWKT) == "" {
		return "", &MissingSlotError{Slot: "geometry_wkt"}
	}
	normalized, err := normalizeWKT(slots.GeometryWKT)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`-- Features contained in the given geometry
SELECT *
FROM %s.%s
WHERE ST_Within(%s, ST_GeomFromText('%s', %d))
LIMIT %d;`,
		schema, slots.Table,
		descriptor.Column, normalized, descriptor.SRID,
		g.rowLimit()), nil
}

func (g *Generator) generateArea(schema string, slots intent.Slots, descriptor catalog.GeometryDescriptor) (string, error) {
	return fmt.Sprintf(`-- Feature areas in square meters
SELECT
    *,
    ST_Area(ST_Transform(%s, 3857)) AS area_sqm,
    ST_Area(ST_Transform(%s, 3857)) / 1000000.0 AS area_sqkm
FROM %s.%s
ORDER BY area_sqm DESC
LIMIT %d;`,
		descriptor.Column, descriptor.Column,
		schema, slots.Table,
		g.rowLimit()), nil
}

func (g *Generator) generateDistance(schema string, slots intent.Slots, descriptor catalog.GeometryDescriptor) (string, error) {
	if !slots.HasPoint {
		return "", &MissingSlotError{Slot: "coordinates"}
	}
	point, err := pointWKT(slots.Longitude, slots.Latitude)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`-- Distance from each feature to (%s, %s)
SELECT
    *,
    ST_Distance(
        ST_Transform(%s, 4326)::geography,
        ST_GeogFromText('SRID=4326;%s')
    ) AS distance_meters
FROM %s.%s
ORDER BY distance_meters
LIMIT %d;`,
		formatFloat(slots.Longitude), formatFloat(slots.Latitude),
		descriptor.Column, point,
		schema, slots.Table,
		g.rowLimit()), nil
}

func (g *Generator) generateCount(schema string, slots intent.Slots) (string, error) {
	// A count aggregates to a single row, the one template that needs no
	// LIMIT.
	return fmt.Sprintf(`-- Feature count
SELECT COUNT(*) AS feature_count
FROM %s.%s;`, schema, slots.Table), nil
}

func checkIdentifiers(identifiers ...string) error {
	for _, identifier := range identifiers {
		if !identifierPattern.MatchString(identifier) {
			return &BadIdentifierError{Identifier: identifier}
		}
	}
	return nil
}

// pointWKT renders a lon/lat pair through go-geom so the embedded text is
// guaranteed well-formed WKT.
func pointWKT(lon, lat float64) (string, error) {
	point := geom.NewPointFlat(geom.XY, []float64{lon, lat})
	encoded, err := wkt.Marshal(point)
	if err != nil {
		return "", fmt.Errorf("encode point wkt: %w", err)
	}
	return encoded, nil
}

// normalizeWKT round-trips caller-supplied WKT through go-geom. Anything that
// does not parse as a geometry is rejected, which also keeps quote characters
// out of the rendered literal.
func normalizeWKT(raw string) (string, error) {
	parsed, err := wkt.Unmarshal(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid geometry wkt: %w", err)
	}
	encoded, err := wkt.Marshal(parsed)
	if err != nil {
		return "", fmt.Errorf("encode geometry wkt: %w", err)
	}
	return encoded, nil
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}
