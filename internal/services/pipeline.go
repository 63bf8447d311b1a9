package services

import (
	"cmp"
	"slices"
	"strings"

	"cocoa-dashboard/internal/models"
)

type geoYearKey struct {
	geo  models.Geography
	year int
}

// AggregateByGeoYear sums tonnes per (geography, year). Output is ordered by
// geography display order, then year.
func AggregateByGeoYear(rows []models.ImportRecord) []models.GeoYearAggregate {
	groups := make(map[geoYearKey]float64)
	for _, r := range rows {
		groups[geoYearKey{geo: r.Geo, year: r.Year}] += r.Tonnes
	}

	result := make([]models.GeoYearAggregate, 0, len(groups))
	for k, total := range groups {
		result = append(result, models.GeoYearAggregate{
			Geo:         k.geo,
			Year:        k.year,
			TotalTonnes: total,
		})
	}
	slices.SortFunc(result, compareGeoYear)
	return result
}

func compareGeoYear(a, b models.GeoYearAggregate) int {
	if c := cmp.Compare(a.Geo.Rank(), b.Geo.Rank()); c != 0 {
		return c
	}
	if c := strings.Compare(string(a.Geo), string(b.Geo)); c != 0 {
		return c
	}
	return cmp.Compare(a.Year, b.Year)
}

// ApplyYoY fills YoYPercentChange against the previous year present for the
// same geography. The first year, and any year following a zero total, stay nil.
func ApplyYoY(aggs []models.GeoYearAggregate) []models.GeoYearAggregate {
	result := slices.Clone(aggs)
	slices.SortStableFunc(result, compareGeoYear)

	for i := range result {
		result[i].YoYPercentChange = nil
		if i == 0 || result[i-1].Geo != result[i].Geo {
			continue
		}
		prev := result[i-1].TotalTonnes
		if prev == 0 {
			continue
		}
		pct := (result[i].TotalTonnes - prev) / prev * 100
		result[i].YoYPercentChange = &pct
	}
	return result
}

// ApplyWorldShare sets each aggregate's share of the all-geography total for
// its year. Years with a zero world total get a share of 0.
func ApplyWorldShare(aggs []models.GeoYearAggregate) []models.GeoYearAggregate {
	yearTotals := make(map[int]float64)
	for _, a := range aggs {
		yearTotals[a.Year] += a.TotalTonnes
	}

	result := slices.Clone(aggs)
	for i := range result {
		total := yearTotals[result[i].Year]
		if total == 0 {
			result[i].WorldSharePercent = 0
			continue
		}
		result[i].WorldSharePercent = result[i].TotalTonnes / total * 100
	}
	return result
}

func BuildAggregates(rows []models.ImportRecord) []models.GeoYearAggregate {
	return ApplyWorldShare(ApplyYoY(AggregateByGeoYear(rows)))
}

// TopImporter returns the importer with the most tonnes in the (geo, year)
// subset. Ties go to the earliest row.
func TopImporter(rows []models.ImportRecord, geo models.Geography, year int) (models.ImporterTonnes, bool) {
	var (
		best  models.ImportRecord
		found bool
		total float64
	)
	for _, r := range rows {
		if r.Geo != geo || r.Year != year {
			continue
		}
		total += r.Tonnes
		if !found || r.Tonnes > best.Tonnes {
			best = r
			found = true
		}
	}
	if !found {
		return models.ImporterTonnes{}, false
	}
	return models.ImporterTonnes{
		Importer:     best.Importer,
		Tonnes:       best.Tonnes,
		SharePercent: sharePercent(best.Tonnes, total),
	}, true
}

func FilterRecords(rows []models.ImportRecord, geo models.Geography, year int) []models.ImportRecord {
	result := make([]models.ImportRecord, 0)
	for _, r := range rows {
		if r.Geo == geo && r.Year == year {
			result = append(result, r)
		}
	}
	return result
}

// RankImporters lists the (geo, year) importers by tonnes, largest first.
func RankImporters(rows []models.ImportRecord, geo models.Geography, year int) []models.ImporterTonnes {
	subset := FilterRecords(rows, geo, year)

	var total float64
	for _, r := range subset {
		total += r.Tonnes
	}

	result := make([]models.ImporterTonnes, 0, len(subset))
	for _, r := range subset {
		result = append(result, models.ImporterTonnes{
			Importer:     r.Importer,
			Tonnes:       r.Tonnes,
			SharePercent: sharePercent(r.Tonnes, total),
		})
	}
	slices.SortStableFunc(result, func(a, b models.ImporterTonnes) int {
		if c := cmp.Compare(b.Tonnes, a.Tonnes); c != 0 {
			return c
		}
		return strings.Compare(a.Importer, b.Importer)
	})
	return result
}

// ImporterSeries returns every year's tonnes for the selected importers of a
// geography, ordered by year then by selection order.
func ImporterSeries(rows []models.ImportRecord, geo models.Geography, importers []string) []models.ImporterYearPoint {
	order := make(map[string]int, len(importers))
	for i, name := range importers {
		if _, seen := order[name]; !seen {
			order[name] = i
		}
	}

	result := make([]models.ImporterYearPoint, 0)
	for _, r := range rows {
		if r.Geo != geo {
			continue
		}
		if _, ok := order[r.Importer]; !ok {
			continue
		}
		result = append(result, models.ImporterYearPoint{
			Importer: r.Importer,
			Year:     r.Year,
			Tonnes:   r.Tonnes,
		})
	}
	slices.SortStableFunc(result, func(a, b models.ImporterYearPoint) int {
		if c := cmp.Compare(a.Year, b.Year); c != 0 {
			return c
		}
		return cmp.Compare(order[a.Importer], order[b.Importer])
	})
	return result
}

// Years returns the distinct years in ascending order.
func Years(rows []models.ImportRecord) []int {
	seen := make(map[int]struct{})
	years := make([]int, 0)
	for _, r := range rows {
		if _, ok := seen[r.Year]; ok {
			continue
		}
		seen[r.Year] = struct{}{}
		years = append(years, r.Year)
	}
	slices.Sort(years)
	return years
}

func sharePercent(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return part / total * 100
}
