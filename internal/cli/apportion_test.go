package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestParsePopulationsCSV(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    map[string]int64
		wantErr bool
	}{
		{
			name: "with header",
			data: "state,population\nAlpha,1000\nBeta,2500\n",
			want: map[string]int64{"Alpha": 1000, "Beta": 2500},
		},
		{
			name: "without header",
			data: "Alpha,1000\nBeta,2500\n",
			want: map[string]int64{"Alpha": 1000, "Beta": 2500},
		},
		{
			name: "whitespace trimmed",
			data: "Alpha , 1000\n",
			want: map[string]int64{"Alpha": 1000},
		},
		{
			name:    "too few columns",
			data:    "Alpha,1000\nBeta\n",
			wantErr: true,
		},
		{
			name:    "bad number past header",
			data:    "Alpha,1000\nBeta,lots\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePopulationsCSV([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePopulationsCSV() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parsePopulationsCSV() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParsePopulationsJSON(t *testing.T) {
	got, err := parsePopulationsJSON([]byte(`{"Alpha": 1000, "Beta": 2500}`))
	if err != nil {
		t.Fatalf("parsePopulationsJSON() error = %v", err)
	}
	want := map[string]int64{"Alpha": 1000, "Beta": 2500}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parsePopulationsJSON() = %v, want %v", got, want)
	}

	if _, err := parsePopulationsJSON([]byte(`["Alpha"]`)); err == nil {
		t.Error("parsePopulationsJSON() with non-object input should return error")
	}
}

func TestReadPopulations(t *testing.T) {
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "states.csv")
	if err := os.WriteFile(csvPath, []byte("Alpha,1000\nBeta,2500\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	jsonPath := filepath.Join(dir, "states.JSON")
	if err := os.WriteFile(jsonPath, []byte(`{"Alpha": 1000, "Beta": 2500}`), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	want := map[string]int64{"Alpha": 1000, "Beta": 2500}

	for _, path := range []string{csvPath, jsonPath} {
		got, err := readPopulations(path)
		if err != nil {
			t.Fatalf("readPopulations(%q) error = %v", path, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("readPopulations(%q) = %v, want %v", path, got, want)
		}
	}

	if _, err := readPopulations(filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("readPopulations() with missing file should return error")
	}
}

func TestApportionCommand(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "states.csv")
	data := "state,population\nAlpha,6000\nBeta,3000\nGamma,1000\n"
	if err := os.WriteFile(input, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	output := filepath.Join(dir, "seats.json")

	app := New(os.Stderr, LogInfo)
	root := app.RootCommand()
	root.SetArgs([]string{"apportion", input, "--seats", "10", "-o", output})

	if err := root.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	raw, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	var result struct {
		HouseSize int            `json:"house_size"`
		Seats     map[string]int `json:"seats"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if result.HouseSize != 10 {
		t.Errorf("HouseSize = %d, want 10", result.HouseSize)
	}
	total := 0
	for _, n := range result.Seats {
		total += n
	}
	if total != 10 {
		t.Errorf("seat total = %d, want 10", total)
	}
	if result.Seats["Alpha"] <= result.Seats["Gamma"] {
		t.Errorf("Alpha seats = %d, Gamma seats = %d, want Alpha > Gamma",
			result.Seats["Alpha"], result.Seats["Gamma"])
	}
}
