package aggregate

import (
	"math"

	"github.com/XavierBriggs/fortuna/services/carviz/pkg/models"
)

// GroupMean groups records by keyFn and averages valueFn over each group.
// Rows come out in first-occurrence order of the key. Non-finite values are
// skipped and a group left with no values is not emitted.
func GroupMean[K comparable](
	records []models.CarRecord,
	keyFn func(models.CarRecord) K,
	valueFn func(models.CarRecord) float64,
) []models.AggregateRow[K] {
	type acc struct {
		sum   float64
		count int
	}

	groups := make(map[K]*acc)
	order := make([]K, 0)

	for _, rec := range records {
		key := keyFn(rec)
		g, exists := groups[key]
		if !exists {
			g = &acc{}
			groups[key] = g
			order = append(order, key)
		}

		v := valueFn(rec)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		g.sum += v
		g.count++
	}

	rows := make([]models.AggregateRow[K], 0, len(order))
	for _, key := range order {
		g := groups[key]
		if g.count == 0 {
			continue
		}
		rows = append(rows, models.AggregateRow[K]{
			Key:   key,
			Value: g.sum / float64(g.count),
			Count: g.count,
		})
	}
	return rows
}

// FilterByYearRange returns the records whose model year lies inside r.
// An unset range returns records unchanged.
func FilterByYearRange(records []models.CarRecord, r models.YearRange) []models.CarRecord {
	if !r.IsSet() {
		return records
	}

	out := make([]models.CarRecord, 0, len(records))
	for _, rec := range records {
		if r.Contains(rec.ModelYear) {
			out = append(out, rec)
		}
	}
	return out
}

// Max returns the largest value in rows, or 0 for an empty slice
func Max[K comparable](rows []models.AggregateRow[K]) float64 {
	var maxV float64
	for i, row := range rows {
		if i == 0 || row.Value > maxV {
			maxV = row.Value
		}
	}
	return maxV
}

// Key and value accessors shared by the charts.

func ByManufacturer(r models.CarRecord) string { return r.Manufacturer }
func ByModelYear(r models.CarRecord) int       { return r.ModelYear }
func MPG(r models.CarRecord) float64           { return r.MPG }
func Acceleration(r models.CarRecord) float64  { return r.Acceleration }

// MPGByManufacturer feeds the pie chart
func MPGByManufacturer(records []models.CarRecord, r models.YearRange) []models.AggregateRow[string] {
	return GroupMean(FilterByYearRange(records, r), ByManufacturer, MPG)
}

// AccelerationByManufacturer feeds the bar chart
func AccelerationByManufacturer(records []models.CarRecord, r models.YearRange) []models.AggregateRow[string] {
	return GroupMean(FilterByYearRange(records, r), ByManufacturer, Acceleration)
}

// MPGByYear feeds the line chart
func MPGByYear(records []models.CarRecord, r models.YearRange) []models.AggregateRow[int] {
	return GroupMean(FilterByYearRange(records, r), ByModelYear, MPG)
}
