package census

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
)

func testGeom(x, y float64) orb.MultiPolygon {
	return orb.MultiPolygon{orb.Polygon{orb.Ring{
		{x, y}, {x + 1, y}, {x + 1, y + 1}, {x, y + 1}, {x, y},
	}}}
}

func testUnit(id string, pop int64) Unit {
	return Unit{GEOID: id, Population: pop, Geometry: testGeom(0, 0)}
}

func TestNewTableValidation(t *testing.T) {
	tests := []struct {
		name    string
		units   []Unit
		wantErr error
	}{
		{"empty", nil, ErrEmptyTable},
		{"empty id", []Unit{{Population: 1, Geometry: testGeom(0, 0)}}, ErrEmptyID},
		{"duplicate id", []Unit{testUnit("a", 1), testUnit("a", 2)}, ErrDuplicateID},
		{"negative population", []Unit{testUnit("a", -1)}, ErrNegativePopulation},
		{"no geometry", []Unit{{GEOID: "a", Population: 1}}, ErrEmptyGeometry},
		{
			"lean out of range",
			[]Unit{{GEOID: "a", Population: 1, Geometry: testGeom(0, 0), PartisanLean: 1.2, HasLean: true}},
			ErrLeanRange,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTable(tt.units)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewTable error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTableSortedAccess(t *testing.T) {
	tbl, err := NewTable([]Unit{testUnit("c", 30), testUnit("a", 10), testUnit("b", 20)})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	want := []string{"a", "b", "c"}
	got := tbl.GEOIDs()
	if len(got) != len(want) {
		t.Fatalf("GEOIDs len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("GEOIDs[%d] = %q, want %q", i, got[i], want[i])
		}
		if tbl.At(i).GEOID != want[i] {
			t.Errorf("At(%d).GEOID = %q, want %q", i, tbl.At(i).GEOID, want[i])
		}
	}
	if tbl.TotalPopulation() != 60 {
		t.Errorf("TotalPopulation = %d, want 60", tbl.TotalPopulation())
	}
	u, ok := tbl.Unit("b")
	if !ok || u.Population != 20 {
		t.Errorf("Unit(b) = %+v, %v", u, ok)
	}
	if _, ok := tbl.Unit("zzz"); ok {
		t.Error("Unit(zzz) unexpectedly found")
	}
	if i, ok := tbl.Index("c"); !ok || i != 2 {
		t.Errorf("Index(c) = %d, %v, want 2, true", i, ok)
	}
}

func TestUnitLeanFallback(t *testing.T) {
	u := Unit{}
	if got := u.Lean(); got != 0.5 {
		t.Errorf("Lean without data = %v, want 0.5", got)
	}
	u = Unit{PartisanLean: 0.7, HasLean: true}
	if got := u.Lean(); got != 0.7 {
		t.Errorf("Lean = %v, want 0.7", got)
	}
}

func TestDemographicPop(t *testing.T) {
	u := Unit{Demographics: map[string]int64{"white": 60, "minority": 40, "other": 5}}
	if got := u.DemographicPop([]string{"minority", "other"}); got != 45 {
		t.Errorf("DemographicPop = %d, want 45", got)
	}
	if got := u.DemographicPop(nil); got != 0 {
		t.Errorf("DemographicPop(nil) = %d, want 0", got)
	}
}

func TestGroupsAndCOITags(t *testing.T) {
	a := testUnit("a", 1)
	a.Demographics = map[string]int64{"white": 1}
	a.COI = "riverside"
	b := testUnit("b", 1)
	b.Demographics = map[string]int64{"minority": 1}
	tbl, err := NewTable([]Unit{a, b})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	groups := tbl.Groups()
	if len(groups) != 2 || groups[0] != "minority" || groups[1] != "white" {
		t.Errorf("Groups = %v, want [minority white]", groups)
	}
	tags := tbl.COITags()
	if len(tags) != 1 || tags[0] != "riverside" {
		t.Errorf("COITags = %v, want [riverside]", tags)
	}
}

func TestFingerprintStableAndSensitive(t *testing.T) {
	build := func(pop int64) *Table {
		tbl, err := NewTable([]Unit{testUnit("a", pop), testUnit("b", 2)})
		if err != nil {
			t.Fatalf("NewTable: %v", err)
		}
		return tbl
	}
	if build(1).Fingerprint() != build(1).Fingerprint() {
		t.Error("identical tables produced different fingerprints")
	}
	if build(1).Fingerprint() == build(2).Fingerprint() {
		t.Error("different tables produced the same fingerprint")
	}
}
