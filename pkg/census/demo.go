package census

import (
	"fmt"

	"github.com/paulmach/orb"
)

// DemoTable builds the synthetic demo grid: size×size unit squares where
// cell (row, col) covers (col, row)..(col+1, row+1) and carries population
// 1000 + (row·size+col)·25. Columns in the left half lean 0.3 toward party A
// with a 55/45 white/minority split; the right half leans 0.7 with a 35/65
// split, concentrating a minority cluster there. The grid is what examples,
// the CLI demo mode, and tests run against.
func DemoTable(size int) *Table {
	if size < 1 {
		size = 1
	}
	units := make([]Unit, 0, size*size)
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			pop := int64(1000 + (row*size+col)*25)
			whiteShare := 0.55
			lean := 0.3
			if col >= size/2 {
				whiteShare = 0.35
				lean = 0.7
			}
			white := int64(float64(pop) * whiteShare)
			x, y := float64(col), float64(row)
			units = append(units, Unit{
				GEOID:      fmt.Sprintf("%03d%03d", row, col),
				Population: pop,
				Demographics: map[string]int64{
					"white":    white,
					"minority": pop - white,
				},
				PartisanLean: lean,
				HasLean:      true,
				Geometry: orb.MultiPolygon{orb.Polygon{orb.Ring{
					{x, y},
					{x + 1, y},
					{x + 1, y + 1},
					{x, y + 1},
					{x, y},
				}}},
			})
		}
	}
	t, err := NewTable(units)
	if err != nil {
		panic(fmt.Sprintf("census: demo table: %v", err))
	}
	return t
}
