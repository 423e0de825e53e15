package apportion

import (
	"errors"
	"reflect"
	"testing"
)

func TestApportionSmallHandComputed(t *testing.T) {
	// Seats 4-6 by priority: A and B tie at 100/√2 and the name breaks it,
	// then B, then A and B tie again at 100/√6.
	res, err := Apportion(map[string]int64{"A": 100, "B": 100, "C": 10}, 6)
	if err != nil {
		t.Fatalf("Apportion: %v", err)
	}
	want := map[string]int{"A": 3, "B": 2, "C": 1}
	if !reflect.DeepEqual(res.Seats, want) {
		t.Errorf("Seats = %v, want %v", res.Seats, want)
	}
}

func TestPriorityOrdering(t *testing.T) {
	q := priorityQueue{
		{name: "low", pop: 10, priority: 1},
		{name: "high", pop: 10, priority: 2},
		{name: "z", pop: 20, priority: 2},
		{name: "a", pop: 20, priority: 2},
	}
	if !q.Less(1, 0) {
		t.Error("higher priority must sort first")
	}
	if !q.Less(2, 1) {
		t.Error("equal priority must prefer the larger population")
	}
	if !q.Less(3, 2) {
		t.Error("equal priority and population must prefer the smaller name")
	}
}

func TestApportionFloorOnly(t *testing.T) {
	res, err := Apportion(map[string]int64{"a": 5, "b": 99999}, 2)
	if err != nil {
		t.Fatalf("Apportion: %v", err)
	}
	if res.Seats["a"] != 1 || res.Seats["b"] != 1 {
		t.Errorf("Seats = %v, want one each", res.Seats)
	}
}

func TestApportionErrors(t *testing.T) {
	tests := []struct {
		name    string
		pops    map[string]int64
		house   int
		wantErr error
	}{
		{"empty", nil, 10, ErrNoStates},
		{"house too small", map[string]int64{"a": 1, "b": 1, "c": 1}, 2, ErrHouseTooSmall},
		{"zero population", map[string]int64{"a": 0, "b": 1}, 5, ErrNonPositivePopulation},
		{"negative population", map[string]int64{"a": -4, "b": 1}, 5, ErrNonPositivePopulation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apportion(tt.pops, tt.house)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestApportionDeterministic(t *testing.T) {
	pops := map[string]int64{"a": 1234, "b": 5678, "c": 910, "d": 1112}
	first, err := Apportion(pops, 20)
	if err != nil {
		t.Fatalf("Apportion: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Apportion(pops, 20)
		if err != nil {
			t.Fatalf("Apportion: %v", err)
		}
		if !reflect.DeepEqual(first.Seats, again.Seats) {
			t.Fatalf("run %d differed: %v vs %v", i, again.Seats, first.Seats)
		}
	}
}

// census2020 holds the official 2020 apportionment populations, overseas
// counts included.
var census2020 = map[string]int64{
	"Alabama": 5030053, "Alaska": 736081, "Arizona": 7158923, "Arkansas": 3013756,
	"California": 39576757, "Colorado": 5782171, "Connecticut": 3608298, "Delaware": 990837,
	"Florida": 21570527, "Georgia": 10725274, "Hawaii": 1460137, "Idaho": 1841377,
	"Illinois": 12822739, "Indiana": 6790280, "Iowa": 3192406, "Kansas": 2940865,
	"Kentucky": 4509342, "Louisiana": 4661468, "Maine": 1363582, "Maryland": 6185278,
	"Massachusetts": 7033469, "Michigan": 10084442, "Minnesota": 5709752, "Mississippi": 2963914,
	"Missouri": 6160281, "Montana": 1085407, "Nebraska": 1963333, "Nevada": 3108462,
	"New Hampshire": 1379089, "New Jersey": 9294493, "New Mexico": 2120220, "New York": 20215751,
	"North Carolina": 10453948, "North Dakota": 779702, "Ohio": 11808848, "Oklahoma": 3963516,
	"Oregon": 4241500, "Pennsylvania": 13011844, "Rhode Island": 1098163, "South Carolina": 5124712,
	"South Dakota": 887770, "Tennessee": 6916897, "Texas": 29183290, "Utah": 3275252,
	"Vermont": 643503, "Virginia": 8654542, "Washington": 7715946, "West Virginia": 1795045,
	"Wisconsin": 5897473, "Wyoming": 577719,
}

func TestApportion2020House(t *testing.T) {
	res, err := Apportion(census2020, 435)
	if err != nil {
		t.Fatalf("Apportion: %v", err)
	}

	total := 0
	maxState, maxSeats := "", 0
	for state, seats := range res.Seats {
		if seats < 1 {
			t.Errorf("%s got %d seats, every state gets at least one", state, seats)
		}
		total += seats
		if seats > maxSeats {
			maxState, maxSeats = state, seats
		}
	}
	if total != 435 {
		t.Errorf("total seats = %d, want 435", total)
	}

	want := map[string]int{
		"California": 52,
		"Texas":      38,
		"Florida":    28,
		"Wyoming":    1,
		"Vermont":    1,
	}
	for state, seats := range want {
		if got := res.SeatsFor(state); got != seats {
			t.Errorf("%s = %d seats, want %d", state, got, seats)
		}
	}
	if maxState != "California" {
		t.Errorf("largest delegation = %s (%d), want California", maxState, maxSeats)
	}
}

func TestResultStates(t *testing.T) {
	res, err := Apportion(map[string]int64{"b": 10, "a": 10}, 2)
	if err != nil {
		t.Fatalf("Apportion: %v", err)
	}
	if got := res.States(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("States = %v, want [a b]", got)
	}
	if res.SeatsFor("missing") != 0 {
		t.Error("SeatsFor(missing) should be 0")
	}
}
