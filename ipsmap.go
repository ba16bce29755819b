// Package ipsmap joins the social position index (IPS) of French schools with
// departmental electoral abstention and prepares the per-department table and
// marker set a choropleth map is drawn from.
//
// Data flows one way: load, merge, enrich (cached per input fingerprint),
// then filter, spatial join and aggregate on every render.
package ipsmap

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config contains configuration options for a Pipeline.
type Config struct {
	DataDir          string      // Directory holding the default file names (default: "./data")
	Sources          *Sources    // Explicit file paths; overrides DataDir when set
	Logger           *zap.Logger // default: no-op
	ClusterPrecision int         // geohash length of marker clusters
}

// Option is a functional option for configuring a Pipeline.
type Option func(*Config)

// WithDataDir sets the directory the default source files are read from.
func WithDataDir(dir string) Option {
	return func(c *Config) {
		c.DataDir = dir
	}
}

// WithSources sets every source path explicitly.
func WithSources(src Sources) Option {
	return func(c *Config) {
		c.Sources = &src
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithClusterPrecision sets the geohash precision of marker clusters.
func WithClusterPrecision(p int) Option {
	return func(c *Config) {
		c.ClusterPrecision = p
	}
}

func defaultConfig() *Config {
	return &Config{
		DataDir:          "./data",
		Logger:           zap.NewNop(),
		ClusterPrecision: DefaultClusterPrecision,
	}
}

// Dataset is the prepared, read-only input of every render: merged and
// enriched facilities, election results and the department index.
type Dataset struct {
	Facilities  []Facility
	Elections   []ElectionResult
	Index       *DepartmentIndex
	Options     SelectorOptions
	Fingerprint string
}

// PrepareDataset runs the loader, merger and enricher stages, then checks the
// joins across the whole dataset with Validate. A dataset that passes can
// only produce empty renders for selections that legitimately match nothing.
func PrepareDataset(ctx context.Context, src Sources, log *zap.Logger) (*Dataset, error) {
	if log == nil {
		log = zap.NewNop()
	}
	start := time.Now()

	tables, err := LoadTables(ctx, src)
	if err != nil {
		return nil, err
	}
	log.Debug("tables loaded", zap.String("counts", tables.describe()))

	merged, err := MergeFacilities(tables.Colleges, tables.Lycees, tables.Directory)
	if err != nil {
		return nil, fmt.Errorf("merging facilities: %w", err)
	}
	if dropped := len(tables.Colleges) + len(tables.Lycees) - len(merged); dropped > 0 {
		log.Info("facilities without directory entry dropped", zap.Int("dropped", dropped))
	}

	enriched, err := Enrich(merged)
	if err != nil {
		return nil, fmt.Errorf("enriching facilities: %w", err)
	}

	depts, err := LoadDepartments(src.Departments, src.DepartmentsCRS)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		Facilities: enriched,
		Elections:  tables.Elections,
		Index:      NewDepartmentIndex(depts),
		Options:    Options(enriched, tables.Elections),
	}
	rep, err := Validate(ds)
	if err != nil {
		return nil, fmt.Errorf("validating dataset: %w", err)
	}
	if len(rep.UnknownElectDepts) > 0 {
		log.Warn("election departments without boundary", zap.Strings("codes", rep.UnknownElectDepts))
	}
	log.Info("dataset prepared",
		zap.Int("facilities", len(ds.Facilities)),
		zap.Int("departments", len(depts)),
		zap.Int("elections", len(ds.Options.Elections)),
		zap.Duration("took", time.Since(start)))
	return ds, nil
}

// DepartmentView is a department with its statistics for the current
// selection. Stats is nil when the department has no row in the table;
// AbstentionRate is nil when the selected election has no result for it.
type DepartmentView struct {
	Department
	Stats          *DepartmentStats
	AbstentionRate *float64
}

// Result is the output of one render pass.
type Result struct {
	RenderID    string
	Selection   Selection
	Stats       []DepartmentStats // inner join of IPS statistics and abstention
	Elections   []ElectionResult  // results of the selected election
	Facilities  []JoinedFacility  // markers
	Departments []DepartmentView  // every department, for the choropleth
	Clusters    []MarkerCluster
	Filtered    int // facilities left after the filter stage
}

// Empty reports a legitimately empty selection: nothing to draw but no error.
func (r *Result) Empty() bool {
	return len(r.Stats) == 0 && len(r.Facilities) == 0
}

// Render runs the filter, spatial join and aggregation stages for sel.
// A selection matching nothing yields an empty Result, not an error.
// It does not modify the dataset.
func (ds *Dataset) Render(sel Selection, clusterPrecision int) *Result {
	facilities := FilterFacilities(ds.Facilities, sel)
	elections := FilterElections(ds.Elections, sel.ElectionID)

	joined := SpatialJoin(facilities, ds.Index)
	stats := MergeElection(Aggregate(joined), elections)

	byCode := make(map[string]int, len(stats))
	for i, s := range stats {
		byCode[s.Code] = i
	}
	rates := make(map[string]float64, len(elections))
	for _, r := range elections {
		rates[r.DepartmentCode] = r.AbstentionRate
	}
	views := make([]DepartmentView, 0, len(ds.Index.Departments()))
	for _, d := range ds.Index.Departments() {
		v := DepartmentView{Department: d}
		if i, ok := byCode[d.Code]; ok {
			s := stats[i]
			v.Stats = &s
		}
		if rate, ok := rates[d.Code]; ok {
			v.AbstentionRate = &rate
		}
		views = append(views, v)
	}

	return &Result{
		Selection:   sel.normalized(),
		Stats:       stats,
		Elections:   elections,
		Facilities:  joined,
		Departments: views,
		Clusters:    ClusterMarkers(joined, clusterPrecision),
		Filtered:    len(facilities),
	}
}

// Pipeline ties the cached dataset to render passes.
type Pipeline struct {
	config *Config
	log    *zap.Logger
	store  *Store
}

// New creates a Pipeline. Nothing is read until the first Dataset or Render.
//
//	p := ipsmap.New(ipsmap.WithDataDir("./data"))
//	res, err := p.Render(ctx, ipsmap.Selection{Year: "2022", ElectionID: "2022_pres_t1"})
func New(opts ...Option) *Pipeline {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	src := DefaultSources(cfg.DataDir)
	if cfg.Sources != nil {
		src = *cfg.Sources
	}
	return &Pipeline{
		config: cfg,
		log:    cfg.Logger,
		store:  NewStore(src, cfg.Logger),
	}
}

// Store returns the dataset cache backing the pipeline.
func (p *Pipeline) Store() *Store { return p.store }

// Dataset returns the prepared dataset, building it on first use or after the
// source files changed.
func (p *Pipeline) Dataset(ctx context.Context) (*Dataset, error) {
	return p.store.Dataset(ctx)
}

// Render prepares (or reuses) the dataset and renders sel. Any stage failure
// aborts the pass; no partial result is returned.
func (p *Pipeline) Render(ctx context.Context, sel Selection) (*Result, error) {
	id := uuid.NewString()
	log := p.log.With(zap.String("render_id", id))
	start := time.Now()

	ds, err := p.store.Dataset(ctx)
	if err != nil {
		log.Error("dataset unavailable", zap.Error(err))
		return nil, err
	}
	res := ds.Render(sel, p.config.ClusterPrecision)
	res.RenderID = id

	log.Info("render complete",
		zap.String("year", res.Selection.Year),
		zap.Strings("types", res.Selection.Types),
		zap.String("election", res.Selection.ElectionID),
		zap.Int("filtered", res.Filtered),
		zap.Int("joined", len(res.Facilities)),
		zap.Int("departments", len(res.Stats)),
		zap.Duration("took", time.Since(start)))
	if res.Empty() {
		log.Warn("selection matched nothing")
	}
	return res, nil
}
