package sqlgen

import (
	"errors"
	"strings"
	"testing"

	"github.com/terrasql/terrasql/internal/catalog"
	"github.com/terrasql/terrasql/internal/intent"
)

var polygonDescriptor = catalog.GeometryDescriptor{Column: "geom", Type: "POLYGON", SRID: 4326}

func TestGenerateNearbyEmbedsValuesAndLimit(t *testing.T) {
	generator := &Generator{}
	slots := intent.Slots{
		Table:        "poi",
		Longitude:    120.5,
		Latitude:     30.2,
		HasPoint:     true,
		RadiusMeters: 500,
		HasRadius:    true,
	}

	sql, err := generator.Generate(intent.IntentNearby, slots, polygonDescriptor, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	for _, fragment := range []string{"120.5", "30.2", "500", "LIMIT", "ST_DWithin", "public.poi", "distance_meters"} {
		if !strings.Contains(sql, fragment) {
			t.Fatalf("generated SQL missing %q:\n%s", fragment, sql)
		}
	}
}

func TestGenerateNearbyRequiresCoordinatesAndRadius(t *testing.T) {
	generator := &Generator{}

	_, err := generator.Generate(intent.IntentNearby, intent.Slots{Table: "poi", RadiusMeters: 500, HasRadius: true}, polygonDescriptor, nil)
	var missing *MissingSlotError
	if !errors.As(err, &missing) || missing.Slot != "coordinates" {
		t.Fatalf("error = %v, want MissingSlotError(coordinates)", err)
	}

	_, err = generator.Generate(intent.IntentNearby, intent.Slots{Table: "poi", Longitude: 1, Latitude: 2, HasPoint: true}, polygonDescriptor, nil)
	if !errors.As(err, &missing) || missing.Slot != "radius_meters" {
		t.Fatalf("error = %v, want MissingSlotError(radius_meters)", err)
	}
}

func TestGenerateBufferRequiresDistance(t *testing.T) {
	generator := &Generator{}
	_, err := generator.Generate(intent.IntentBuffer, intent.Slots{Table: "roads"}, polygonDescriptor, nil)
	var missing *MissingSlotError
	if !errors.As(err, &missing) || missing.Slot != "radius_meters" {
		t.Fatalf("error = %v, want MissingSlotError(radius_meters)", err)
	}
}

func TestGenerateBufferCarriesLimit(t *testing.T) {
	generator := &Generator{RowLimit: 25}
	sql, err := generator.Generate(intent.IntentBuffer, intent.Slots{Table: "roads", RadiusMeters: 100, HasRadius: true}, polygonDescriptor, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.Contains(sql, "LIMIT 25") {
		t.Fatalf("buffer SQL missing LIMIT 25:\n%s", sql)
	}
	if !strings.Contains(sql, "ST_Buffer") {
		t.Fatalf("buffer SQL missing ST_Buffer:\n%s", sql)
	}
}

func TestGenerateIntersectionRequiresSecondTable(t *testing.T) {
	generator := &Generator{}
	_, err := generator.Generate(intent.IntentIntersection, intent.Slots{Table: "parcels"}, polygonDescriptor, nil)
	var missing *MissingSlotError
	if !errors.As(err, &missing) || missing.Slot != "second_table" {
		t.Fatalf("error = %v, want MissingSlotError(second_table)", err)
	}
}

func TestGenerateIntersectionJoinsBothTables(t *testing.T) {
	generator := &Generator{}
	secondary := catalog.GeometryDescriptor{Column: "the_geom", Type: "POLYGON", SRID: 4326}
	slots := intent.Slots{Table: "parcels", SecondTable: "flood_zones"}

	sql, err := generator.Generate(intent.IntentIntersection, slots, polygonDescriptor, &secondary)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	for _, fragment := range []string{"public.parcels", "public.flood_zones", "ST_Intersects(a.geom, b.the_geom)", "LIMIT"} {
		if !strings.Contains(sql, fragment) {
			t.Fatalf("intersection SQL missing %q:\n%s", fragment, sql)
		}
	}
}

func TestGenerateWithinNormalizesWKT(t *testing.T) {
	generator := &Generator{}
	slots := intent.Slots{Table: "buildings", GeometryWKT: "POLYGON ((0 0, 10 0, 10 10, 0 10, 0 0))"}

	sql, err := generator.Generate(intent.IntentWithin, slots, polygonDescriptor, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	for _, fragment := range []string{"ST_Within", "ST_GeomFromText", "4326", "LIMIT"} {
		if !strings.Contains(sql, fragment) {
			t.Fatalf("within SQL missing %q:\n%s", fragment, sql)
		}
	}
}

func TestGenerateWithinRejectsInvalidWKT(t *testing.T) {
	generator := &Generator{}
	slots := intent.Slots{Table: "buildings", GeometryWKT: "POLYGON((not wkt')"}
	if _, err := generator.Generate(intent.IntentWithin, slots, polygonDescriptor, nil); err == nil {
		t.Fatal("invalid WKT should be rejected")
	}
}

func TestGenerateAreaOrdersDescendingWithLimit(t *testing.T) {
	generator := &Generator{}
	sql, err := generator.Generate(intent.IntentArea, intent.Slots{Table: "parcels"}, polygonDescriptor, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	for _, fragment := range []string{"ST_Area", "area_sqkm", "ORDER BY area_sqm DESC", "LIMIT"} {
		if !strings.Contains(sql, fragment) {
			t.Fatalf("area SQL missing %q:\n%s", fragment, sql)
		}
	}
}

func TestGenerateDistanceRequiresPoint(t *testing.T) {
	generator := &Generator{}
	_, err := generator.Generate(intent.IntentDistance, intent.Slots{Table: "cities"}, polygonDescriptor, nil)
	var missing *MissingSlotError
	if !errors.As(err, &missing) || missing.Slot != "coordinates" {
		t.Fatalf("error = %v, want MissingSlotError(coordinates)", err)
	}
}

func TestGenerateCountHasNoLimit(t *testing.T) {
	generator := &Generator{}
	sql, err := generator.Generate(intent.IntentCount, intent.Slots{Table: "poi"}, polygonDescriptor, nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !strings.Contains(sql, "COUNT(*)") {
		t.Fatalf("count SQL missing COUNT(*):\n%s", sql)
	}
	if strings.Contains(sql, "LIMIT") {
		t.Fatalf("count SQL should not carry a LIMIT:\n%s", sql)
	}
}

func TestGenerateRejectsBadIdentifiers(t *testing.T) {
	generator := &Generator{}
	cases := []intent.Slots{
		{Table: "poi; DROP TABLE x"},
		{Table: "poi", Schema: `pub"lic`},
	}
	for _, slots := range cases {
		_, err := generator.Generate(intent.IntentCount, slots, polygonDescriptor, nil)
		var bad *BadIdentifierError
		if !errors.As(err, &bad) {
			t.Fatalf("slots %+v: error = %v, want BadIdentifierError", slots, err)
		}
	}
}

func TestGenerateRequiresTable(t *testing.T) {
	generator := &Generator{}
	_, err := generator.Generate(intent.IntentCount, intent.Slots{}, polygonDescriptor, nil)
	var missing *MissingSlotError
	if !errors.As(err, &missing) || missing.Slot != "table_name" {
		t.Fatalf("error = %v, want MissingSlotError(table_name)", err)
	}
}
