package services

import (
	"math"
	"testing"

	"cocoa-dashboard/internal/models"
	"github.com/google/go-cmp/cmp"
)

func rec(geo models.Geography, year int, importer string, tonnes float64) models.ImportRecord {
	return models.ImportRecord{Geo: geo, Year: year, Importer: importer, Tonnes: tonnes}
}

func sampleRecords() []models.ImportRecord {
	return []models.ImportRecord{
		rec(models.GeoEurope, 2020, "Netherlands", 100),
		rec(models.GeoEurope, 2020, "Germany", 50),
		rec(models.GeoEurope, 2021, "Netherlands", 120),
		rec(models.GeoEurope, 2021, "Germany", 60),
		rec(models.GeoAsiaOceania, 2020, "Malaysia", 40),
		rec(models.GeoAsiaOceania, 2021, "Malaysia", 30),
		rec(models.GeoAsiaOceania, 2021, "Indonesia", 30),
		rec(models.GeoAmericas, 2020, "United States", 60),
		rec(models.GeoAmericas, 2021, "United States", 90),
	}
}

func TestAggregateByGeoYear(t *testing.T) {
	got := AggregateByGeoYear(sampleRecords())

	want := []models.GeoYearAggregate{
		{Geo: models.GeoEurope, Year: 2020, TotalTonnes: 150},
		{Geo: models.GeoEurope, Year: 2021, TotalTonnes: 180},
		{Geo: models.GeoAsiaOceania, Year: 2020, TotalTonnes: 40},
		{Geo: models.GeoAsiaOceania, Year: 2021, TotalTonnes: 60},
		{Geo: models.GeoAmericas, Year: 2020, TotalTonnes: 60},
		{Geo: models.GeoAmericas, Year: 2021, TotalTonnes: 90},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("AggregateByGeoYear() mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateByGeoYear_Empty(t *testing.T) {
	got := AggregateByGeoYear(nil)
	if got == nil || len(got) != 0 {
		t.Errorf("AggregateByGeoYear(nil) should return empty slice, got %v", got)
	}
}

func TestApplyYoY(t *testing.T) {
	tests := []struct {
		name string
		rows []models.ImportRecord
		want []*float64
	}{
		{
			name: "first year is nil",
			rows: []models.ImportRecord{
				rec(models.GeoEurope, 2020, "France", 100),
				rec(models.GeoEurope, 2021, "France", 150),
			},
			want: []*float64{nil, ptr(50)},
		},
		{
			name: "decline",
			rows: []models.ImportRecord{
				rec(models.GeoAmericas, 2019, "Canada", 200),
				rec(models.GeoAmericas, 2020, "Canada", 150),
			},
			want: []*float64{nil, ptr(-25)},
		},
		{
			name: "gap compares against previous present year",
			rows: []models.ImportRecord{
				rec(models.GeoEurope, 2017, "Italy", 80),
				rec(models.GeoEurope, 2019, "Italy", 100),
			},
			want: []*float64{nil, ptr(25)},
		},
		{
			name: "zero prior total is nil",
			rows: []models.ImportRecord{
				rec(models.GeoEurope, 2018, "Spain", 0),
				rec(models.GeoEurope, 2019, "Spain", 10),
			},
			want: []*float64{nil, nil},
		},
		{
			name: "no change is zero not nil",
			rows: []models.ImportRecord{
				rec(models.GeoEurope, 2018, "Spain", 10),
				rec(models.GeoEurope, 2019, "Spain", 10),
			},
			want: []*float64{nil, ptr(0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyYoY(AggregateByGeoYear(tt.rows))
			if len(got) != len(tt.want) {
				t.Fatalf("ApplyYoY() returned %d rows, want %d", len(got), len(tt.want))
			}
			for i, w := range tt.want {
				g := got[i].YoYPercentChange
				switch {
				case w == nil && g != nil:
					t.Errorf("row %d: YoY = %v, want nil", i, *g)
				case w != nil && g == nil:
					t.Errorf("row %d: YoY = nil, want %v", i, *w)
				case w != nil && math.Abs(*g-*w) > 1e-9:
					t.Errorf("row %d: YoY = %v, want %v", i, *g, *w)
				}
			}
		})
	}
}

func TestApplyYoY_GeographiesIndependent(t *testing.T) {
	got := ApplyYoY(AggregateByGeoYear(sampleRecords()))

	for _, agg := range got {
		if agg.Year == 2020 && agg.YoYPercentChange != nil {
			t.Errorf("%s 2020 should have nil YoY, got %v", agg.Geo, *agg.YoYPercentChange)
		}
		if agg.Year == 2021 && agg.YoYPercentChange == nil {
			t.Errorf("%s 2021 should have YoY", agg.Geo)
		}
	}
}

func TestApplyWorldShare(t *testing.T) {
	got := BuildAggregates(sampleRecords())

	sums := make(map[int]float64)
	for _, agg := range got {
		sums[agg.Year] += agg.WorldSharePercent
	}
	for year, sum := range sums {
		if math.Abs(sum-100) > 1e-6 {
			t.Errorf("world shares for %d sum to %v, want 100", year, sum)
		}
	}

	// Europe 2021: 180 of 330.
	for _, agg := range got {
		if agg.Geo == models.GeoEurope && agg.Year == 2021 {
			want := 180.0 / 330.0 * 100
			if math.Abs(agg.WorldSharePercent-want) > 1e-9 {
				t.Errorf("Europe 2021 share = %v, want %v", agg.WorldSharePercent, want)
			}
		}
	}
}

func TestApplyWorldShare_ZeroTotal(t *testing.T) {
	got := BuildAggregates([]models.ImportRecord{
		rec(models.GeoEurope, 2020, "France", 0),
		rec(models.GeoAmericas, 2020, "Canada", 0),
	})
	for _, agg := range got {
		if agg.WorldSharePercent != 0 {
			t.Errorf("%s share should be 0 for zero world total, got %v", agg.Geo, agg.WorldSharePercent)
		}
	}
}

func TestBuildAggregates_Idempotent(t *testing.T) {
	rows := sampleRecords()
	first := BuildAggregates(rows)
	second := BuildAggregates(rows)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("BuildAggregates() not deterministic (-first +second):\n%s", diff)
	}

	again := ApplyWorldShare(ApplyYoY(first))
	if diff := cmp.Diff(first, again); diff != "" {
		t.Errorf("re-applying derivations changed the result (-first +again):\n%s", diff)
	}
}

func TestTopImporter(t *testing.T) {
	rows := sampleRecords()

	tests := []struct {
		name      string
		geo       models.Geography
		year      int
		want      string
		wantFound bool
	}{
		{"largest wins", models.GeoEurope, 2021, "Netherlands", true},
		{"tie goes to first row", models.GeoAsiaOceania, 2021, "Malaysia", true},
		{"single importer", models.GeoAmericas, 2020, "United States", true},
		{"empty subset", models.GeoEurope, 2017, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := TopImporter(rows, tt.geo, tt.year)
			if found != tt.wantFound {
				t.Fatalf("TopImporter() found = %v, want %v", found, tt.wantFound)
			}
			if got.Importer != tt.want {
				t.Errorf("TopImporter() = %q, want %q", got.Importer, tt.want)
			}
		})
	}
}

func TestTopImporter_IsMaximum(t *testing.T) {
	rows := sampleRecords()
	for _, geo := range models.AllGeographies() {
		for _, year := range Years(rows) {
			top, ok := TopImporter(rows, geo, year)
			if !ok {
				continue
			}
			for _, r := range FilterRecords(rows, geo, year) {
				if r.Tonnes > top.Tonnes {
					t.Errorf("%s %d: %s (%v) exceeds top %s (%v)", geo, year, r.Importer, r.Tonnes, top.Importer, top.Tonnes)
				}
			}
		}
	}
}

func TestTopImporter_Share(t *testing.T) {
	top, _ := TopImporter(sampleRecords(), models.GeoEurope, 2020)
	want := 100.0 / 150.0 * 100
	if math.Abs(top.SharePercent-want) > 1e-9 {
		t.Errorf("SharePercent = %v, want %v", top.SharePercent, want)
	}
}

func TestRankImporters(t *testing.T) {
	got := RankImporters(sampleRecords(), models.GeoAsiaOceania, 2021)

	var names []string
	for _, it := range got {
		names = append(names, it.Importer)
	}
	want := []string{"Indonesia", "Malaysia"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("RankImporters() order mismatch (-want +got):\n%s", diff)
	}
	for _, it := range got {
		if it.SharePercent != 50 {
			t.Errorf("%s share = %v, want 50", it.Importer, it.SharePercent)
		}
	}
}

func TestImporterSeries(t *testing.T) {
	got := ImporterSeries(sampleRecords(), models.GeoEurope, []string{"Germany", "Netherlands", "Germany"})

	want := []models.ImporterYearPoint{
		{Importer: "Germany", Year: 2020, Tonnes: 50},
		{Importer: "Netherlands", Year: 2020, Tonnes: 100},
		{Importer: "Germany", Year: 2021, Tonnes: 60},
		{Importer: "Netherlands", Year: 2021, Tonnes: 120},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ImporterSeries() mismatch (-want +got):\n%s", diff)
	}
}

func TestImporterSeries_UnknownImporter(t *testing.T) {
	got := ImporterSeries(sampleRecords(), models.GeoEurope, []string{"Atlantis"})
	if len(got) != 0 {
		t.Errorf("ImporterSeries() for unknown importer should be empty, got %v", got)
	}
}

func TestYears(t *testing.T) {
	rows := append(sampleRecords(), rec(models.GeoEurope, 2017, "France", 1))
	if diff := cmp.Diff([]int{2017, 2020, 2021}, Years(rows)); diff != "" {
		t.Errorf("Years() mismatch (-want +got):\n%s", diff)
	}
}

func ptr(f float64) *float64 { return &f }
