package census

import (
	"errors"
	"strings"
	"testing"
)

func coiTable(t *testing.T) *Table {
	t.Helper()
	tbl, err := NewTable([]Unit{
		testUnit("01001020100", 100),
		testUnit("01001020200", 100),
		testUnit("01001020300", 100),
	})
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	return tbl
}

func TestApplyCOI(t *testing.T) {
	tbl := coiTable(t)
	csv := "GEOID,coi\n01001020100,riverside\n01001020300,riverside\n99999999999,ghost\n"
	n, err := tbl.ApplyCOI(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ApplyCOI: %v", err)
	}
	if n != 2 {
		t.Errorf("matched = %d, want 2", n)
	}
	u, _ := tbl.Unit("01001020100")
	if u.COI != "riverside" {
		t.Errorf("COI = %q, want riverside", u.COI)
	}
	u, _ = tbl.Unit("01001020200")
	if u.COI != "" {
		t.Errorf("untagged unit got COI %q", u.COI)
	}
}

func TestApplyCOIZeroPadding(t *testing.T) {
	tbl := coiTable(t)
	// Sidecar shed the leading zero; padding must still match.
	csv := "geoid20,community\n1001020100,coast\n"
	n, err := tbl.ApplyCOI(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ApplyCOI: %v", err)
	}
	if n != 1 {
		t.Errorf("matched = %d, want 1", n)
	}
	u, _ := tbl.Unit("01001020100")
	if u.COI != "coast" {
		t.Errorf("COI = %q, want coast", u.COI)
	}
}

func TestApplyCOISecondColumnFallback(t *testing.T) {
	tbl := coiTable(t)
	csv := "id,neighborhood\n01001020200,uptown\n"
	if _, err := tbl.ApplyCOI(strings.NewReader(csv)); err != nil {
		t.Fatalf("ApplyCOI: %v", err)
	}
	u, _ := tbl.Unit("01001020200")
	if u.COI != "uptown" {
		t.Errorf("COI = %q, want uptown", u.COI)
	}
}

func TestApplyCOINoGEOIDColumn(t *testing.T) {
	tbl := coiTable(t)
	_, err := tbl.ApplyCOI(strings.NewReader("name,value\nfoo,bar\n"))
	if !errors.Is(err, ErrNoGEOIDColumn) {
		t.Errorf("error = %v, want ErrNoGEOIDColumn", err)
	}
}

func TestApplyCOIChangesFingerprint(t *testing.T) {
	tbl := coiTable(t)
	before := tbl.Fingerprint()
	if _, err := tbl.ApplyCOI(strings.NewReader("GEOID,coi\n01001020100,x\n")); err != nil {
		t.Fatalf("ApplyCOI: %v", err)
	}
	if tbl.Fingerprint() == before {
		t.Error("fingerprint unchanged after COI application")
	}
}
