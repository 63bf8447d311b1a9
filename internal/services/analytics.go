package services

import (
	"context"
	"encoding/csv"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"cocoa-dashboard/internal/models"
	"cocoa-dashboard/internal/observability"
	"golang.org/x/sync/errgroup"
)

const (
	batchSize       = 1000
	maxWorkers      = 10
	cacheVersion    = "v2"
	defaultCacheDir = ".cache"
)

var (
	ErrNoData        = errors.New("no valid import records")
	ErrMissingColumn = errors.New("missing required column")
	ErrUnknownYear   = errors.New("unknown year")
	ErrNoSource      = errors.New("no csv source configured")
)

// Column names expected in the CSV header, matched case-insensitively.
const (
	colGeo      = "geo"
	colYear     = "year"
	colImporter = "importers"
	colTonnes   = "tonnes"
)

// PrecomputedData is the memoized result of one CSV load. Only parsed records
// are persisted; derived views are rebuilt from them. SourceSize and
// SourceModTime identify the CSV the records came from.
type PrecomputedData struct {
	Records       []models.ImportRecord
	Skipped       int64
	Duplicates    int64
	LastModified  time.Time
	SourceSize    int64
	SourceModTime time.Time

	aggregates []models.GeoYearAggregate
	years      []int
	importers  int
	fromCache  bool
}

type Analytics struct {
	mu               sync.RWMutex
	precomputed      *PrecomputedData
	csvPath          string
	source           string
	cacheDir         string
	cacheEnabled     bool
	recordsProcessed atomic.Int64
	logger           *slog.Logger
}

type Option func(*Analytics)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Analytics) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithCacheDir(dir string) Option {
	return func(a *Analytics) {
		a.cacheDir = dir
		a.cacheEnabled = dir != ""
	}
}

func WithoutCache() Option {
	return func(a *Analytics) {
		a.cacheEnabled = false
	}
}

func NewAnalytics(opts ...Option) *Analytics {
	a := &Analytics{
		precomputed:  derive(&PrecomputedData{}),
		cacheDir:     defaultCacheDir,
		cacheEnabled: true,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetData replaces the dataset with in-memory records, bypassing CSV parsing.
func (a *Analytics) SetData(records []models.ImportRecord) {
	merged, duplicates := mergeDuplicates(records)
	data := derive(&PrecomputedData{
		Records:      merged,
		Duplicates:   duplicates,
		LastModified: time.Now(),
	})

	a.mu.Lock()
	defer a.mu.Unlock()
	a.precomputed = data
	a.source = "memory"
}

func (a *Analytics) LoadFromCSV(ctx context.Context, filename string) error {
	ctx, span := observability.StartSpan(ctx, "analytics.load_csv")
	defer span.Finish()
	span.SetTag("csv.path", filename)

	a.mu.Lock()
	a.csvPath = filename
	a.mu.Unlock()

	if a.cacheEnabled {
		if cached, err := a.loadFromCache(filename); err == nil {
			fileInfo, err := os.Stat(filename)
			if err == nil && cached.matches(fileInfo) {
				cached.fromCache = true
				a.install(filename, derive(cached))
				span.SetTag("cache", "hit")
				a.logger.Info("loaded from cache", "records", len(cached.Records))
				return nil
			}
		}
	}

	start := time.Now()
	a.logger.Info("processing CSV file", "filename", filename)

	data, err := a.streamProcessCSV(ctx, filename)
	if err != nil {
		span.SetError(err)
		return fmt.Errorf("process csv: %w", err)
	}
	a.install(filename, data)

	if a.cacheEnabled {
		if err := a.saveToCache(filename, data); err != nil {
			a.logger.Warn("failed to save cache", "error", err)
		}
	}

	duration := time.Since(start)
	count := a.recordsProcessed.Load()
	a.logger.Info("csv processing complete",
		"records", count,
		"skipped", data.Skipped,
		"duplicates", data.Duplicates,
		"duration", duration)

	return nil
}

// Reload re-reads the CSV the service was last loaded from.
func (a *Analytics) Reload(ctx context.Context) error {
	a.mu.RLock()
	path := a.csvPath
	a.mu.RUnlock()

	if path == "" {
		return ErrNoSource
	}
	return a.LoadFromCSV(ctx, path)
}

func (a *Analytics) install(source string, data *PrecomputedData) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.precomputed = data
	a.source = source
}

type columnIndex struct {
	geo, year, importer, tonnes int
}

func (c columnIndex) width() int {
	return max(c.geo, c.year, c.importer, c.tonnes) + 1
}

func resolveColumns(header []string) (columnIndex, error) {
	idx := map[string]int{}
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}

	var cols columnIndex
	for _, want := range []struct {
		name string
		dst  *int
	}{
		{colGeo, &cols.geo},
		{colYear, &cols.year},
		{colImporter, &cols.importer},
		{colTonnes, &cols.tonnes},
	} {
		i, ok := idx[want.name]
		if !ok {
			return columnIndex{}, fmt.Errorf("%w: %s", ErrMissingColumn, want.name)
		}
		*want.dst = i
	}
	return cols, nil
}

func (a *Analytics) streamProcessCSV(ctx context.Context, filename string) (*PrecomputedData, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var (
		records []models.ImportRecord
		skipped int64
	)
	batch := make([][]string, 0, batchSize)

	flush := func() error {
		parsed, bad, err := parseBatch(ctx, batch, cols)
		if err != nil {
			return err
		}
		records = append(records, parsed...)
		skipped += bad
		batch = batch[:0]
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				a.logger.Warn("skipping malformed csv line", "line", parseErr.Line, "error", parseErr.Err)
				skipped++
				continue
			}
			return nil, fmt.Errorf("read row: %w", err)
		}

		batch = append(batch, row)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}

	if len(batch) > 0 {
		if err := flush(); err != nil {
			return nil, err
		}
	}

	if skipped > 0 {
		a.logger.Warn("skipped invalid rows", "count", skipped, "filename", filename)
	}

	if len(records) == 0 {
		return nil, ErrNoData
	}

	merged, duplicates := mergeDuplicates(records)
	a.recordsProcessed.Store(int64(len(merged)))

	return derive(&PrecomputedData{
		Records:       merged,
		Skipped:       skipped,
		Duplicates:    duplicates,
		LastModified:  time.Now(),
		SourceSize:    info.Size(),
		SourceModTime: info.ModTime(),
	}), nil
}

// matches reports whether the cached data was parsed from a file with this
// exact size and modification time.
func (d *PrecomputedData) matches(info os.FileInfo) bool {
	return info.Size() == d.SourceSize && info.ModTime().Equal(d.SourceModTime)
}

// parseBatch parses rows concurrently while keeping their input order, which
// TopImporter relies on for tie-breaking.
func parseBatch(ctx context.Context, batch [][]string, cols columnIndex) ([]models.ImportRecord, int64, error) {
	type parsedRow struct {
		rec   models.ImportRecord
		valid bool
	}

	out := make([]parsedRow, len(batch))
	chunk := (len(batch) + maxWorkers - 1) / maxWorkers

	var g errgroup.Group
	g.SetLimit(maxWorkers)

	for start := 0; start < len(batch); start += chunk {
		end := min(start+chunk, len(batch))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				rec, err := parseRecord(batch[i], cols)
				if err != nil {
					continue
				}
				out[i] = parsedRow{rec: rec, valid: true}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	records := make([]models.ImportRecord, 0, len(out))
	var bad int64
	for _, p := range out {
		if !p.valid {
			bad++
			continue
		}
		records = append(records, p.rec)
	}
	return records, bad, nil
}

func parseRecord(row []string, cols columnIndex) (models.ImportRecord, error) {
	if len(row) < cols.width() {
		return models.ImportRecord{}, fmt.Errorf("insufficient columns")
	}

	geo, err := models.ParseGeography(row[cols.geo])
	if err != nil {
		return models.ImportRecord{}, err
	}

	year, err := strconv.Atoi(strings.TrimSpace(row[cols.year]))
	if err != nil {
		return models.ImportRecord{}, fmt.Errorf("parse year: %w", err)
	}

	importer := strings.TrimSpace(row[cols.importer])
	if importer == "" {
		return models.ImportRecord{}, fmt.Errorf("empty importer")
	}

	raw := strings.ReplaceAll(strings.TrimSpace(row[cols.tonnes]), ",", "")
	tonnes, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return models.ImportRecord{}, fmt.Errorf("parse tonnes: %w", err)
	}
	if math.IsNaN(tonnes) || math.IsInf(tonnes, 0) || tonnes < 0 {
		return models.ImportRecord{}, fmt.Errorf("invalid tonnes %q", raw)
	}

	return models.ImportRecord{
		Geo:      geo,
		Year:     year,
		Importer: importer,
		Tonnes:   tonnes,
	}, nil
}

// mergeDuplicates folds repeated (geo, year, importer) rows into the first
// occurrence by summing tonnes.
func mergeDuplicates(records []models.ImportRecord) ([]models.ImportRecord, int64) {
	type key struct {
		geo      models.Geography
		year     int
		importer string
	}

	seen := make(map[key]int, len(records))
	merged := make([]models.ImportRecord, 0, len(records))
	var duplicates int64

	for _, r := range records {
		k := key{geo: r.Geo, year: r.Year, importer: r.Importer}
		if i, ok := seen[k]; ok {
			merged[i].Tonnes += r.Tonnes
			duplicates++
			continue
		}
		seen[k] = len(merged)
		merged = append(merged, r)
	}
	return merged, duplicates
}

func derive(data *PrecomputedData) *PrecomputedData {
	data.aggregates = BuildAggregates(data.Records)
	data.years = Years(data.Records)

	importers := make(map[string]struct{})
	for _, r := range data.Records {
		importers[r.Importer] = struct{}{}
	}
	data.importers = len(importers)
	return data
}

// Cache management
func (a *Analytics) getCacheFilename(csvPath string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(csvPath)
	return filepath.Join(a.cacheDir, fmt.Sprintf("%s_%s.gob", name, cacheVersion))
}

func (a *Analytics) saveToCache(csvPath string, data *PrecomputedData) error {
	if err := os.MkdirAll(a.cacheDir, 0755); err != nil {
		return err
	}

	file, err := os.Create(a.getCacheFilename(csvPath))
	if err != nil {
		return err
	}
	defer file.Close()

	return gob.NewEncoder(file).Encode(data)
}

func (a *Analytics) loadFromCache(csvPath string) (*PrecomputedData, error) {
	file, err := os.Open(a.getCacheFilename(csvPath))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var data PrecomputedData
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, err
	}
	if len(data.Records) == 0 {
		return nil, ErrNoData
	}
	return &data, nil
}

// Snapshots are never mutated after install.
func (a *Analytics) snapshot() *PrecomputedData {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.precomputed
}

func (a *Analytics) Records() []models.ImportRecord {
	return slices.Clone(a.snapshot().Records)
}

func (a *Analytics) Years() []int {
	return slices.Clone(a.snapshot().years)
}

func (a *Analytics) LatestYear() (int, bool) {
	years := a.snapshot().years
	if len(years) == 0 {
		return 0, false
	}
	return years[len(years)-1], true
}

func (a *Analytics) HasYear(year int) bool {
	_, found := slices.BinarySearch(a.snapshot().years, year)
	return found
}

// ResolveYear returns year when it is present, otherwise the latest year.
func (a *Analytics) ResolveYear(year int) (int, bool) {
	if a.HasYear(year) {
		return year, true
	}
	return a.LatestYear()
}

func (a *Analytics) AllAggregates() []models.GeoYearAggregate {
	return slices.Clone(a.snapshot().aggregates)
}

func (a *Analytics) Aggregates(geo models.Geography) []models.GeoYearAggregate {
	result := make([]models.GeoYearAggregate, 0)
	for _, agg := range a.snapshot().aggregates {
		if agg.Geo == geo {
			result = append(result, agg)
		}
	}
	return result
}

// KPIs returns one entry per geography for year, in display order.
func (a *Analytics) KPIs(year int) ([]models.GeoKPI, error) {
	data := a.snapshot()
	if _, found := slices.BinarySearch(data.years, year); !found {
		return nil, fmt.Errorf("%w: %d", ErrUnknownYear, year)
	}

	kpis := make([]models.GeoKPI, 0, len(models.AllGeographies()))
	for _, geo := range models.AllGeographies() {
		kpi := models.GeoKPI{Geo: geo, Year: year}
		for _, agg := range data.aggregates {
			if agg.Geo == geo && agg.Year == year {
				kpi.TotalTonnes = agg.TotalTonnes
				kpi.WorldSharePercent = agg.WorldSharePercent
				break
			}
		}
		if top, ok := TopImporter(data.Records, geo, year); ok {
			kpi.TopImporter = top.Importer
		}
		kpis = append(kpis, kpi)
	}
	return kpis, nil
}

func (a *Analytics) Importers(geo models.Geography, year int) []models.ImporterTonnes {
	return RankImporters(a.snapshot().Records, geo, year)
}

func (a *Analytics) TopImporter(geo models.Geography, year int) (models.ImporterTonnes, bool) {
	return TopImporter(a.snapshot().Records, geo, year)
}

func (a *Analytics) ImporterSeries(geo models.Geography, importers []string) []models.ImporterYearPoint {
	return ImporterSeries(a.snapshot().Records, geo, importers)
}

// Utility method for monitoring
func (a *Analytics) Stats() models.DatasetStats {
	a.mu.RLock()
	data, source := a.precomputed, a.source
	a.mu.RUnlock()

	geos := make(map[models.Geography]struct{})
	for _, agg := range data.aggregates {
		geos[agg.Geo] = struct{}{}
	}

	return models.DatasetStats{
		Source:           source,
		RecordCount:      int64(len(data.Records)),
		SkippedRows:      data.Skipped,
		DuplicatesMerged: data.Duplicates,
		Years:            slices.Clone(data.years),
		Geographies:      len(geos),
		Importers:        data.importers,
		LoadedAt:         data.LastModified,
		FromCache:        data.fromCache,
	}
}
