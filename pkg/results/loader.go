package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/nicktill/energyview/pkg/archive"
	"github.com/nicktill/energyview/pkg/cache"
	"github.com/nicktill/energyview/pkg/cluster"
	"github.com/nicktill/energyview/pkg/network"
	"github.com/nicktill/energyview/pkg/table"
)

// Stage is a coarse step of a load. Callers may abort between stages.
type Stage string

const (
	StageTopology            Stage = "topology"
	StageClusters            Stage = "k_means_specs"
	StageSummary             Stage = "summary"
	StageEnergyBalance       Stage = "energy_balance"
	StageTechnologyOperation Stage = "technology_operation"
	StageTechnologyDesign    Stage = "technology_design"
	StageNetworks            Stage = "networks"
)

// Archive group paths.
const (
	PathTopology            = "topology"
	PathClusters            = "k_means_specs"
	PathSummary             = "summary"
	PathEnergyBalance       = "operation/energy_balance"
	PathTechnologyOperation = "operation/technology_operation"
	PathTechnologyDesign    = "design/nodes"
	PathNetworkDesign       = "design/networks"
	PathNetworkOperation    = "operation/networks"
)

// DefaultRequiredGroups must be present in every archive. Everything else may
// be absent and yields an empty table.
var DefaultRequiredGroups = []string{"topology/nodes", PathEnergyBalance}

// ProgressFunc receives the percentage reached after a stage.
type ProgressFunc func(stage Stage, percent int)

// Observer is told about every finished stage.
type Observer interface {
	StageDone(stage Stage, elapsed time.Duration, err error)
}

// Observers fans stage reports out to several observers.
type Observers []Observer

// StageDone implements Observer.
func (obs Observers) StageDone(stage Stage, elapsed time.Duration, err error) {
	for _, o := range obs {
		if o != nil {
			o.StageDone(stage, elapsed, err)
		}
	}
}

// Loader reads archives into bundles.
type Loader struct {
	cache    cache.Store
	logger   *log.Logger
	observer Observer
	required []string
	progress ProgressFunc
	now      func() time.Time
}

// Option configures a Loader.
type Option func(*Loader)

// WithCache stores decoded tables per (archive digest, table).
func WithCache(s cache.Store) Option {
	return func(l *Loader) {
		if s != nil {
			l.cache = s
		}
	}
}

// WithLogger enables progress logging. nil is silent.
func WithLogger(lg *log.Logger) Option {
	return func(l *Loader) { l.logger = lg }
}

// WithObserver reports stage timings.
func WithObserver(o Observer) Option {
	return func(l *Loader) { l.observer = o }
}

// WithRequiredGroups replaces DefaultRequiredGroups. Paths may name a group
// or a leaf.
func WithRequiredGroups(paths ...string) Option {
	return func(l *Loader) { l.required = append([]string{}, paths...) }
}

// WithProgress reports the percentage reached after each table stage.
func WithProgress(fn ProgressFunc) Option {
	return func(l *Loader) { l.progress = fn }
}

// NewLoader creates a loader. Without WithCache nothing is cached.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		cache:    cache.Disabled{},
		required: DefaultRequiredGroups,
		now:      time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Loader) logf(format string, args ...any) {
	if l.logger != nil {
		l.logger.Printf(format, args...)
	}
}

// run is the state of one Load call.
type run struct {
	l      *Loader
	src    archive.Source
	digest string
	scope  string
}

// Load reads every table of src. Any failure aborts the load and no bundle
// is returned.
func (l *Loader) Load(ctx context.Context, src archive.Source) (*Bundle, error) {
	start := l.now()
	digest, err := src.Identity(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to identify %s: %w", src.Name(), err)
	}
	r := &run{l: l, src: src, digest: digest, scope: l.cacheScope()}
	b := &Bundle{source: src.Name(), digest: digest}
	l.logf("loading %s (digest %s)", src.Name(), digest)
	l.report(StageTopology, 0)

	stages := []struct {
		stage   Stage
		percent int
		fn      func(context.Context, *Bundle) error
	}{
		{StageTopology, 0, r.topology},
		{StageClusters, 0, r.clusters},
		{StageSummary, 0, r.summary},
		{StageEnergyBalance, 20, r.energyBalance},
		{StageTechnologyOperation, 60, r.technologyOperation},
		{StageTechnologyDesign, 80, r.technologyDesign},
		{StageNetworks, 100, r.networks},
	}
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("load of %s aborted before %s: %w", src.Name(), s.stage, err)
		}
		t0 := l.now()
		err := s.fn(ctx, b)
		if l.observer != nil {
			l.observer.StageDone(s.stage, l.now().Sub(t0), err)
		}
		if err != nil {
			l.logf("loading %s failed at %s: %v", src.Name(), s.stage, err)
			return nil, fmt.Errorf("%s: %w", s.stage, err)
		}
		if s.percent > 0 {
			l.report(s.stage, s.percent)
		}
	}

	b.loadedAt = l.now()
	l.logf("loaded %s in %v", src.Name(), b.loadedAt.Sub(start))
	return b, nil
}

func (l *Loader) report(stage Stage, percent int) {
	if l.progress != nil {
		l.progress(stage, percent)
	}
}

// cacheScope names the required-group set. Whether a missing group is empty
// or fatal depends on it, so entries built under another set are not reused.
func (l *Loader) cacheScope() string {
	req := append([]string{}, l.required...)
	sort.Strings(req)
	return "required=" + strings.Join(req, ",")
}

// CacheKey is the key under which this loader caches table of the archive
// with the given digest.
func (l *Loader) CacheKey(digest, table string) cache.Key {
	return cache.Key{Digest: digest, Table: table, Scope: l.cacheScope()}
}

func (r *run) isRequired(path string) bool {
	for _, req := range r.l.required {
		if req == path || strings.HasPrefix(req, path+"/") {
			return true
		}
	}
	return false
}

// group opens the archive, reads one group and closes the archive again.
// A missing optional group is (nil, nil).
func (r *run) group(ctx context.Context, path string) (g *archive.Group, err error) {
	a, err := r.src.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close archive: %w", cerr)
		}
	}()

	g, err = a.Group(ctx, path)
	if errors.Is(err, archive.ErrMissingGroup) && !r.isRequired(path) {
		r.l.logf("%s has no %s group", r.src.Name(), path)
		return nil, nil
	}
	return g, err
}

// flat reads and flattens one group. A missing optional group is empty.
func (r *run) flat(ctx context.Context, path string) (*archive.FlatMap, error) {
	g, err := r.group(ctx, path)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return archive.NewFlatMap(), nil
	}
	return archive.Flatten(g, nil)
}

// cached returns the decoded cache entry for name or builds and stores it.
// Undecodable entries are rebuilt.
func cached[T any](ctx context.Context, r *run, name string, decode func([]byte) (T, error), build func() (T, error)) (T, error) {
	key := cache.Key{Digest: r.digest, Table: name, Scope: r.scope}
	payload, ok, err := r.l.cache.Get(ctx, key)
	if err != nil {
		r.l.logf("cache read %s failed: %v", key, err)
	} else if ok {
		v, err := decode(payload)
		if err == nil {
			return v, nil
		}
		r.l.logf("discarding cache entry %s: %v", key, err)
	}

	v, err := build()
	if err != nil {
		return v, err
	}
	payload, err = json.Marshal(v)
	if err != nil {
		return v, fmt.Errorf("failed to encode %s: %w", name, err)
	}
	if err := r.l.cache.Set(ctx, key, payload); err != nil {
		r.l.logf("cache write %s failed: %v", key, err)
	}
	return v, nil
}

func decodeJSON[T any](b []byte) (T, error) {
	var v T
	err := json.Unmarshal(b, &v)
	return v, err
}

func (r *run) topology(ctx context.Context, b *Bundle) error {
	topo, err := cached(ctx, r, "topology", decodeJSON[Topology], func() (Topology, error) {
		var t Topology
		g, err := r.group(ctx, PathTopology)
		if err != nil || g == nil {
			return t, err
		}
		for _, item := range []struct {
			name string
			dst  *[]string
		}{{"nodes", &t.Nodes}, {"carriers", &t.Carriers}, {"periods", &t.Periods}} {
			n, ok := g.Child(item.name)
			if !ok {
				if r.isRequired(PathTopology + "/" + item.name) {
					return t, fmt.Errorf("%w: %s/%s", archive.ErrMissingGroup, PathTopology, item.name)
				}
				continue
			}
			leaf, ok := n.(*archive.Leaf)
			if !ok {
				return t, fmt.Errorf("%w: %s/%s is a group", archive.ErrMalformedTree, PathTopology, item.name)
			}
			vals, err := names(leaf.Array())
			if err != nil {
				return t, fmt.Errorf("%s/%s: %w", PathTopology, item.name, err)
			}
			*item.dst = vals
		}
		return t, nil
	})
	if err != nil {
		return err
	}
	b.topology = topo
	return nil
}

// names decodes a catalog leaf. Byte strings are decoded as UTF-8; numeric
// catalogs are formatted.
func names(a archive.Array) ([]string, error) {
	if a.DType() == archive.Bytes {
		return a.Texts()
	}
	vals, err := a.Values()
	if err != nil {
		return nil, err
	}
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = v.String()
	}
	return out, nil
}

func (r *run) clusters(ctx context.Context, b *Bundle) error {
	spec, err := cached(ctx, r, "k_means_specs", decodeJSON[cluster.Spec], func() (cluster.Spec, error) {
		flat, err := r.flat(ctx, PathClusters)
		if err != nil {
			return nil, err
		}
		return cluster.FromFlat(flat)
	})
	if err != nil {
		return err
	}
	b.clusters = spec
	return nil
}

func (r *run) summary(ctx context.Context, b *Bundle) error {
	w, err := cached(ctx, r, "summary", func(p []byte) (*table.Wide, error) {
		w := &table.Wide{}
		return w, json.Unmarshal(p, w)
	}, func() (*table.Wide, error) {
		flat, err := r.flat(ctx, PathSummary)
		if err != nil {
			return nil, err
		}
		return table.WideFromFlat(flat)
	})
	if err != nil {
		return err
	}
	b.summary = w
	return nil
}

// timeTable is the flatten, build, expand and index pipeline shared by the
// operation tables.
func timeTable[C table.Column](ctx context.Context, r *run, path string, schema table.Schema[C], spec cluster.Spec) (*table.Table[C], error) {
	return cached(ctx, r, schema.Name, func(p []byte) (*table.Table[C], error) {
		return table.Decode(schema, p)
	}, func() (*table.Table[C], error) {
		flat, err := r.flat(ctx, path)
		if err != nil {
			return nil, err
		}
		cols, err := table.Build(flat, schema)
		if err != nil {
			return nil, err
		}
		cols, err = cluster.Expand(cols, spec)
		if err != nil {
			return nil, err
		}
		return table.New(schema, cols)
	})
}

func (r *run) energyBalance(ctx context.Context, b *Bundle) error {
	t, err := timeTable(ctx, r, PathEnergyBalance, table.EnergyBalance, b.clusters)
	if err != nil {
		return err
	}
	b.energyBalance = t
	return nil
}

func (r *run) technologyOperation(ctx context.Context, b *Bundle) error {
	t, err := timeTable(ctx, r, PathTechnologyOperation, table.TechnologyOperation, b.clusters)
	if err != nil {
		return err
	}
	b.technologyOperation = t
	return nil
}

func longTable[C table.Column](ctx context.Context, r *run, path string, schema table.Schema[C]) (*table.LongTable[C], error) {
	return cached(ctx, r, schema.Name, func(p []byte) (*table.LongTable[C], error) {
		return table.DecodeLong(schema, p)
	}, func() (*table.LongTable[C], error) {
		flat, err := r.flat(ctx, path)
		if err != nil {
			return nil, err
		}
		return table.Melt(flat, schema)
	})
}

func (r *run) technologyDesign(ctx context.Context, b *Bundle) error {
	t, err := longTable(ctx, r, PathTechnologyDesign, table.TechnologyDesign)
	if err != nil {
		return err
	}
	b.technologyDesign = t
	return nil
}

// networks reads the design first because the operation join needs its arc
// catalog.
func (r *run) networks(ctx context.Context, b *Bundle) error {
	design, err := longTable(ctx, r, PathNetworkDesign, table.NetworkDesign)
	if err != nil {
		return err
	}
	arcs, err := network.CatalogFromDesign(design)
	if err != nil {
		return err
	}

	op, err := cached(ctx, r, table.NetworkOperation.Name, func(p []byte) (*table.Table[table.NetworkOperationColumn], error) {
		return table.Decode(table.NetworkOperation, p)
	}, func() (*table.Table[table.NetworkOperationColumn], error) {
		flat, err := r.flat(ctx, PathNetworkOperation)
		if err != nil {
			return nil, err
		}
		raw, err := table.Build(flat, table.NetworkOperationRaw)
		if err != nil {
			return nil, err
		}
		joined, err := network.Join(arcs, raw)
		if err != nil {
			return nil, err
		}
		joined, err = cluster.Expand(joined, b.clusters)
		if err != nil {
			return nil, err
		}
		return table.New(table.NetworkOperation, joined)
	})
	if err != nil {
		return err
	}

	b.networkDesign = design
	b.arcs = arcs
	b.networkOperation = op
	return nil
}
