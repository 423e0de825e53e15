// Package census models the geographic unit table districting plans are
// built from: blocks or tracts keyed by GEOID, each carrying population,
// demographic counts, an optional partisan lean, an optional
// community-of-interest tag, and a multipolygon geometry. Tables iterate in
// ascending GEOID order everywhere, which is what makes every downstream
// stage deterministic.
package census

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/paulmach/orb"
)

// Validation failures surfaced by NewTable.
var (
	// ErrEmptyTable indicates a table with no units.
	ErrEmptyTable = errors.New("census: table has no units")

	// ErrEmptyID indicates a unit with an empty GEOID.
	ErrEmptyID = errors.New("census: empty GEOID")

	// ErrDuplicateID indicates two units sharing a GEOID.
	ErrDuplicateID = errors.New("census: duplicate GEOID")

	// ErrNegativePopulation indicates a unit with population below zero.
	ErrNegativePopulation = errors.New("census: negative population")

	// ErrEmptyGeometry indicates a unit without any polygon.
	ErrEmptyGeometry = errors.New("census: empty geometry")

	// ErrLeanRange indicates a partisan lean outside [0, 1].
	ErrLeanRange = errors.New("census: partisan lean outside [0, 1]")

	// ErrUnknownID indicates a GEOID not present in the table.
	ErrUnknownID = errors.New("census: unknown GEOID")
)

// Unit is one geographic census unit.
type Unit struct {
	GEOID        string
	Population   int64
	Demographics map[string]int64
	PartisanLean float64 // share for party A in [0, 1]; meaningful only when HasLean
	HasLean      bool
	COI          string // community-of-interest tag, empty when untagged
	Geometry     orb.MultiPolygon
}

// Lean returns the unit's partisan lean, 0.5 when none is recorded.
func (u *Unit) Lean() float64 {
	if !u.HasLean {
		return 0.5
	}
	return u.PartisanLean
}

// DemographicPop returns the summed count of the named groups.
func (u *Unit) DemographicPop(groups []string) int64 {
	var sum int64
	for _, g := range groups {
		sum += u.Demographics[g]
	}
	return sum
}

// Table is an immutable, GEOID-sorted collection of units.
type Table struct {
	units    []*Unit
	index    map[string]int
	totalPop int64

	fingerprint string
}

// NewTable validates and indexes units. Input order does not matter; the
// table sorts by GEOID.
func NewTable(units []Unit) (*Table, error) {
	if len(units) == 0 {
		return nil, ErrEmptyTable
	}
	t := &Table{
		units: make([]*Unit, 0, len(units)),
		index: make(map[string]int, len(units)),
	}
	for i := range units {
		u := units[i]
		if u.GEOID == "" {
			return nil, ErrEmptyID
		}
		if u.Population < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNegativePopulation, u.GEOID)
		}
		if len(u.Geometry) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyGeometry, u.GEOID)
		}
		if u.HasLean && (u.PartisanLean < 0 || u.PartisanLean > 1) {
			return nil, fmt.Errorf("%w: %s", ErrLeanRange, u.GEOID)
		}
		if _, dup := t.index[u.GEOID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, u.GEOID)
		}
		t.index[u.GEOID] = 0 // reserved; reassigned after sorting
		t.units = append(t.units, &u)
		t.totalPop += u.Population
	}
	sort.Slice(t.units, func(i, j int) bool { return t.units[i].GEOID < t.units[j].GEOID })
	for i, u := range t.units {
		t.index[u.GEOID] = i
	}
	t.fingerprint = t.computeFingerprint()
	return t, nil
}

// Len returns the number of units.
func (t *Table) Len() int { return len(t.units) }

// At returns the unit at sorted position i.
func (t *Table) At(i int) *Unit { return t.units[i] }

// Unit looks a unit up by GEOID.
func (t *Table) Unit(geoid string) (*Unit, bool) {
	i, ok := t.index[geoid]
	if !ok {
		return nil, false
	}
	return t.units[i], true
}

// Index returns the sorted position of geoid.
func (t *Table) Index(geoid string) (int, bool) {
	i, ok := t.index[geoid]
	return i, ok
}

// GEOIDs returns all unit IDs in sorted order.
func (t *Table) GEOIDs() []string {
	ids := make([]string, len(t.units))
	for i, u := range t.units {
		ids[i] = u.GEOID
	}
	return ids
}

// TotalPopulation returns the summed population of all units.
func (t *Table) TotalPopulation() int64 { return t.totalPop }

// Groups returns the sorted union of demographic group names.
func (t *Table) Groups() []string {
	seen := map[string]struct{}{}
	for _, u := range t.units {
		for g := range u.Demographics {
			seen[g] = struct{}{}
		}
	}
	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// COITags returns the sorted distinct non-empty community tags.
func (t *Table) COITags() []string {
	seen := map[string]struct{}{}
	for _, u := range t.units {
		if u.COI != "" {
			seen[u.COI] = struct{}{}
		}
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Fingerprint returns a stable content hash of the table, suitable as a
// cache key component. Any attribute change, including applied COI tags,
// changes the fingerprint.
func (t *Table) Fingerprint() string { return t.fingerprint }

func (t *Table) computeFingerprint() string {
	h := sha256.New()
	for _, u := range t.units {
		writeString(h, u.GEOID)
		writeInt(h, u.Population)
		groups := make([]string, 0, len(u.Demographics))
		for g := range u.Demographics {
			groups = append(groups, g)
		}
		sort.Strings(groups)
		for _, g := range groups {
			writeString(h, g)
			writeInt(h, u.Demographics[g])
		}
		if u.HasLean {
			writeFloat(h, u.PartisanLean)
		}
		writeString(h, u.COI)
		for _, poly := range u.Geometry {
			for _, ring := range poly {
				for _, p := range ring {
					writeFloat(h, p[0])
					writeFloat(h, p[1])
				}
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeString(w io.Writer, s string) {
	io.WriteString(w, s)
	w.Write([]byte{0})
}

func writeInt(w io.Writer, v int64) {
	writeString(w, strconv.FormatInt(v, 10))
}

func writeFloat(w io.Writer, v float64) {
	writeString(w, strconv.FormatFloat(v, 'g', -1, 64))
}
