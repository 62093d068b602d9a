package heatmap

import (
	"sort"

	"github.com/pauljones0/post-heatmap/internal/models"
)

// Flatten emits the grid as Days*Hours records: days 0..6, each in display
// column order. Renderers lay the sequence out left-to-right without sorting,
// so the order is part of the output contract.
func Flatten(g *Grid, startHour int) []models.HeatCell {
	cells := make([]models.HeatCell, 0, Days*Hours)
	for d := 0; d < Days; d++ {
		for col := 0; col < Hours; col++ {
			cells = append(cells, models.HeatCell{
				DayOfWeek: d,
				Hour:      ToHour(col, startHour),
				Value:     g[d][col],
			})
		}
	}
	return cells
}

// TopCells returns up to n non-zero cells with the highest value. Ties keep
// flattened order.
func TopCells(cells []models.HeatCell, n int) []models.HeatCell {
	ranked := make([]models.HeatCell, 0, len(cells))
	for _, c := range cells {
		if c.Value > 0 {
			ranked = append(ranked, c)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Value > ranked[j].Value
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
