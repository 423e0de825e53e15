package census

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoGEOIDColumn indicates a COI sidecar whose header has no recognizable
// GEOID column.
var ErrNoGEOIDColumn = errors.New("census: COI file has no GEOID column")

// geoidPad is the width GEOIDs are zero-padded to before matching, wide
// enough for full census block codes.
const geoidPad = 15

// ApplyCOI reads GEOID→tag rows from a CSV sidecar and sets the COI field on
// matching units, returning how many matched. The GEOID column is found
// under common header spellings; the tag column under "coi", "community" or
// "tag", else the second column. GEOIDs are zero-padded on both sides before
// comparing, so 1001020100 matches 01001020100. Units not named keep their
// existing tag.
func (t *Table) ApplyCOI(r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("census: read COI header: %w", err)
	}
	idCol, tagCol, err := coiColumns(header)
	if err != nil {
		return 0, err
	}

	padded := make(map[string]*Unit, len(t.units))
	for _, u := range t.units {
		padded[padGEOID(u.GEOID)] = u
	}

	matched := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return matched, fmt.Errorf("census: read COI row: %w", err)
		}
		if idCol >= len(row) || tagCol >= len(row) {
			continue
		}
		tag := strings.TrimSpace(row[tagCol])
		if tag == "" {
			continue
		}
		if u, ok := padded[padGEOID(strings.TrimSpace(row[idCol]))]; ok {
			u.COI = tag
			matched++
		}
	}
	if matched > 0 {
		t.fingerprint = t.computeFingerprint()
	}
	return matched, nil
}

// ApplyCOIFile is ApplyCOI reading from a file path.
func (t *Table) ApplyCOIFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("census: open COI file: %w", err)
	}
	defer f.Close()
	return t.ApplyCOI(f)
}

func coiColumns(header []string) (idCol, tagCol int, err error) {
	idCol, tagCol = -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "geoid", "geoid20", "geoid10", "id":
			if idCol == -1 {
				idCol = i
			}
		case "coi", "community", "tag":
			if tagCol == -1 {
				tagCol = i
			}
		}
	}
	if idCol == -1 {
		return 0, 0, ErrNoGEOIDColumn
	}
	if tagCol == -1 {
		// Fall back to the column after the GEOID, conventionally second.
		tagCol = idCol + 1
		if tagCol >= len(header) {
			tagCol = 0
		}
	}
	return idCol, tagCol, nil
}

func padGEOID(id string) string {
	if len(id) >= geoidPad {
		return id
	}
	return strings.Repeat("0", geoidPad-len(id)) + id
}
