// Package apportion distributes legislative seats across states with the
// Huntington-Hill equal-proportions method, the procedure used for the US
// House since 1941. Every state is seated once, then remaining seats go one
// at a time to the state with the highest priority value pop/√(n(n+1)).
package apportion

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"sort"
)

// Input failures.
var (
	// ErrNoStates indicates an empty population map.
	ErrNoStates = errors.New("apportion: no states given")

	// ErrHouseTooSmall indicates fewer seats than states, leaving the
	// mandatory one-seat floor unsatisfiable.
	ErrHouseTooSmall = errors.New("apportion: house size below state count")

	// ErrNonPositivePopulation indicates a state with population ≤ 0.
	ErrNonPositivePopulation = errors.New("apportion: non-positive state population")
)

// Result holds a completed apportionment.
type Result struct {
	HouseSize int            `json:"house_size"`
	Seats     map[string]int `json:"seats"`
}

// SeatsFor returns the seats awarded to state, zero when unknown.
func (r *Result) SeatsFor(state string) int { return r.Seats[state] }

// States returns the state names in sorted order.
func (r *Result) States() []string {
	names := make([]string, 0, len(r.Seats))
	for s := range r.Seats {
		names = append(names, s)
	}
	sort.Strings(names)
	return names
}

// Apportion distributes houseSize seats across the given state populations.
// Priority ties break toward the larger population, then the
// lexicographically smaller name, so results are deterministic.
func Apportion(populations map[string]int64, houseSize int) (*Result, error) {
	if len(populations) == 0 {
		return nil, ErrNoStates
	}
	if houseSize < len(populations) {
		return nil, fmt.Errorf("%w: %d seats for %d states", ErrHouseTooSmall, houseSize, len(populations))
	}

	states := make([]*stateSeat, 0, len(populations))
	for name, pop := range populations {
		if pop <= 0 {
			return nil, fmt.Errorf("%w: %s (%d)", ErrNonPositivePopulation, name, pop)
		}
		states = append(states, &stateSeat{name: name, pop: pop, seats: 1})
	}
	// Heap pushes compare equal priorities by name; seed in sorted order so
	// the initial layout is reproducible too.
	sort.Slice(states, func(i, j int) bool { return states[i].name < states[j].name })

	pq := make(priorityQueue, len(states))
	for i, s := range states {
		s.priority = priority(s.pop, s.seats)
		pq[i] = s
	}
	heap.Init(&pq)

	for remaining := houseSize - len(states); remaining > 0; remaining-- {
		top := pq[0]
		top.seats++
		top.priority = priority(top.pop, top.seats)
		heap.Fix(&pq, 0)
	}

	seats := make(map[string]int, len(states))
	for _, s := range states {
		seats[s.name] = s.seats
	}
	return &Result{HouseSize: houseSize, Seats: seats}, nil
}

// priority is the equal-proportions value pop/√(n(n+1)) for a state holding
// n seats.
func priority(pop int64, seats int) float64 {
	n := float64(seats)
	return float64(pop) / math.Sqrt(n*(n+1))
}

type stateSeat struct {
	name     string
	pop      int64
	seats    int
	priority float64
}

type priorityQueue []*stateSeat

func (q priorityQueue) Len() int { return len(q) }

func (q priorityQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	if q[i].pop != q[j].pop {
		return q[i].pop > q[j].pop
	}
	return q[i].name < q[j].name
}

func (q priorityQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *priorityQueue) Push(x any) { *q = append(*q, x.(*stateSeat)) }

func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
