package models

import (
	"fmt"
	"strings"
	"time"
)

type Geography string

const (
	GeoEurope      Geography = "Europe"
	GeoAsiaOceania Geography = "Asia & Oceania"
	GeoAmericas    Geography = "Americas"
)

const geographyCount = 3

var geographyOrder = [geographyCount]Geography{GeoEurope, GeoAsiaOceania, GeoAmericas}

var geographySlugs = map[Geography]string{
	GeoEurope:      "europe",
	GeoAsiaOceania: "asia-oceania",
	GeoAmericas:    "americas",
}

// AllGeographies returns the geographies in dashboard display order.
func AllGeographies() []Geography {
	return append([]Geography(nil), geographyOrder[:]...)
}

// ParseGeography accepts the CSV spelling or the URL slug, case-insensitively.
func ParseGeography(s string) (Geography, error) {
	s = strings.TrimSpace(s)
	for _, g := range geographyOrder {
		if strings.EqualFold(s, string(g)) || strings.EqualFold(s, geographySlugs[g]) {
			return g, nil
		}
	}
	return "", fmt.Errorf("unknown geography %q", s)
}

func (g Geography) String() string {
	return string(g)
}

func (g Geography) Slug() string {
	return geographySlugs[g]
}

// Rank orders geographies for sorting; unknown values sort last.
func (g Geography) Rank() int {
	for i, o := range geographyOrder {
		if o == g {
			return i
		}
	}
	return geographyCount
}

type ImportRecord struct {
	Geo      Geography `json:"geo"`
	Year     int       `json:"year"`
	Importer string    `json:"importer"`
	Tonnes   float64   `json:"tonnes"`
}

type GeoYearAggregate struct {
	Geo               Geography `json:"geo"`
	Year              int       `json:"year"`
	TotalTonnes       float64   `json:"total_tonnes"`
	YoYPercentChange  *float64  `json:"yoy_percent_change"`
	WorldSharePercent float64   `json:"world_share_percent"`
}

type ImporterTonnes struct {
	Importer     string  `json:"importer"`
	Tonnes       float64 `json:"tonnes"`
	SharePercent float64 `json:"share_percent"`
}

type GeoKPI struct {
	Geo               Geography `json:"geo"`
	Year              int       `json:"year"`
	TotalTonnes       float64   `json:"total_tonnes"`
	WorldSharePercent float64   `json:"world_share_percent"`
	TopImporter       string    `json:"top_importer"`
}

type ImporterYearPoint struct {
	Importer string  `json:"importer"`
	Year     int     `json:"year"`
	Tonnes   float64 `json:"tonnes"`
}

type DatasetStats struct {
	Source           string    `json:"source"`
	RecordCount      int64     `json:"record_count"`
	SkippedRows      int64     `json:"skipped_rows"`
	DuplicatesMerged int64     `json:"duplicates_merged"`
	Years            []int     `json:"years"`
	Geographies      int       `json:"geographies"`
	Importers        int       `json:"importers"`
	LoadedAt         time.Time `json:"loaded_at"`
	FromCache        bool      `json:"from_cache"`
}
