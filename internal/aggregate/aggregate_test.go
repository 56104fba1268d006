package aggregate_test

import (
	"math"
	"sort"
	"testing"

	"github.com/XavierBriggs/fortuna/services/carviz/internal/aggregate"
	"github.com/XavierBriggs/fortuna/services/carviz/pkg/models"
)

func scenarioRecords() []models.CarRecord {
	return []models.CarRecord{
		{Manufacturer: "A", ModelYear: 1970, MPG: 20, Acceleration: 10},
		{Manufacturer: "B", ModelYear: 1970, MPG: 30, Acceleration: 12},
		{Manufacturer: "A", ModelYear: 1971, MPG: 25, Acceleration: 11},
	}
}

func TestGroupMean_ManufacturerMPG(t *testing.T) {
	rows := aggregate.GroupMean(scenarioRecords(), aggregate.ByManufacturer, aggregate.MPG)

	expected := []models.AggregateRow[string]{
		{Key: "A", Value: 22.5, Count: 2},
		{Key: "B", Value: 30, Count: 1},
	}

	if len(rows) != len(expected) {
		t.Fatalf("expected %d rows, got %d", len(expected), len(rows))
	}
	for i, want := range expected {
		if rows[i] != want {
			t.Errorf("row %d: expected %+v, got %+v", i, want, rows[i])
		}
	}
}

func TestGroupMean_EmissionOrderFollowsFirstOccurrence(t *testing.T) {
	records := []models.CarRecord{
		{Manufacturer: "ford", MPG: 18},
		{Manufacturer: "amc", MPG: 15},
		{Manufacturer: "ford", MPG: 22},
		{Manufacturer: "buick", MPG: 14},
		{Manufacturer: "amc", MPG: 17},
	}

	rows := aggregate.GroupMean(records, aggregate.ByManufacturer, aggregate.MPG)

	order := []string{"ford", "amc", "buick"}
	if len(rows) != len(order) {
		t.Fatalf("expected %d rows, got %d", len(order), len(rows))
	}
	for i, key := range order {
		if rows[i].Key != key {
			t.Errorf("position %d: expected %q, got %q", i, key, rows[i].Key)
		}
	}
}

func TestGroupMean_ContentIndependentOfInputOrder(t *testing.T) {
	records := scenarioRecords()
	reversed := []models.CarRecord{records[2], records[1], records[0]}

	a := aggregate.GroupMean(records, aggregate.ByManufacturer, aggregate.Acceleration)
	b := aggregate.GroupMean(reversed, aggregate.ByManufacturer, aggregate.Acceleration)

	sortRows := func(rows []models.AggregateRow[string]) {
		sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })
	}
	sortRows(a)
	sortRows(b)

	if len(a) != len(b) {
		t.Fatalf("expected equal lengths, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("row %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestGroupMean_SkipsNonFiniteValues(t *testing.T) {
	records := []models.CarRecord{
		{Manufacturer: "A", MPG: math.NaN()},
		{Manufacturer: "B", MPG: 10},
		{Manufacturer: "B", MPG: math.Inf(1)},
	}

	rows := aggregate.GroupMean(records, aggregate.ByManufacturer, aggregate.MPG)

	if len(rows) != 1 {
		t.Fatalf("expected 1 row (A has no finite values), got %d: %+v", len(rows), rows)
	}
	if rows[0].Key != "B" || rows[0].Value != 10 || rows[0].Count != 1 {
		t.Errorf("unexpected row: %+v", rows[0])
	}
}

func TestGroupMean_Empty(t *testing.T) {
	rows := aggregate.GroupMean(nil, aggregate.ByModelYear, aggregate.MPG)
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func TestFilterByYearRange(t *testing.T) {
	records := scenarioRecords()

	tests := []struct {
		name     string
		r        models.YearRange
		expected int
	}{
		{"unset returns all", models.Unset(), 3},
		{"single year", models.NewYearRange(1971, 1971), 1},
		{"inclusive bounds", models.NewYearRange(1970, 1971), 3},
		{"swapped bounds normalised", models.NewYearRange(1971, 1970), 3},
		{"no matches", models.NewYearRange(1900, 1905), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := aggregate.FilterByYearRange(records, tt.r)
			if len(got) != tt.expected {
				t.Fatalf("expected %d records, got %d", tt.expected, len(got))
			}
			for _, rec := range got {
				if tt.r.IsSet() && (rec.ModelYear < tt.r.Min || rec.ModelYear > tt.r.Max) {
					t.Errorf("record year %d outside %s", rec.ModelYear, tt.r)
				}
			}
		})
	}
}

func TestNamedAggregates_SingleYearSelection(t *testing.T) {
	r := models.NewYearRange(1971, 1971)
	records := scenarioRecords()

	bar := aggregate.AccelerationByManufacturer(records, r)
	if len(bar) != 1 || bar[0].Key != "A" || bar[0].Value != 11 {
		t.Errorf("expected bar [{A 11}], got %+v", bar)
	}

	pie := aggregate.MPGByManufacturer(records, r)
	if len(pie) != 1 || pie[0].Key != "A" || pie[0].Value != 25 {
		t.Errorf("expected pie [{A 25}], got %+v", pie)
	}

	line := aggregate.MPGByYear(records, r)
	if len(line) != 1 || line[0].Key != 1971 {
		t.Errorf("expected line [{1971 25}], got %+v", line)
	}
}

func TestNamedAggregates_EmptySelection(t *testing.T) {
	r := models.NewYearRange(1900, 1905)
	records := scenarioRecords()

	if rows := aggregate.MPGByManufacturer(records, r); len(rows) != 0 {
		t.Errorf("expected empty pie aggregate, got %+v", rows)
	}
	if rows := aggregate.MPGByYear(records, r); len(rows) != 0 {
		t.Errorf("expected empty line aggregate, got %+v", rows)
	}
}

func TestMax(t *testing.T) {
	rows := []models.AggregateRow[int]{{Key: 1, Value: 3}, {Key: 2, Value: 9}, {Key: 3, Value: 4}}
	if got := aggregate.Max(rows); got != 9 {
		t.Errorf("expected 9, got %v", got)
	}
	if got := aggregate.Max([]models.AggregateRow[int]{}); got != 0 {
		t.Errorf("expected 0 for empty rows, got %v", got)
	}
}
