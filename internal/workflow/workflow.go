package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoquery/internal/artifact"
	"github.com/sells-group/geoquery/internal/config"
	"github.com/sells-group/geoquery/internal/monitoring"
	"github.com/sells-group/geoquery/internal/operator"
	"github.com/sells-group/geoquery/internal/raster"
	"github.com/sells-group/geoquery/pkg/boundary"
	"github.com/sells-group/geoquery/pkg/dem"
)

// BoundaryResolver resolves a region name to a cached boundary file.
type BoundaryResolver interface {
	Resolve(ctx context.Context, name string) (boundary.Resolution, error)
}

// DEMFetcher resolves a region to a cached elevation raster.
type DEMFetcher interface {
	Fetch(ctx context.Context, region, boundaryPath string) (dem.Resolution, error)
}

// Request is one query plus the inputs free text cannot carry.
type Request struct {
	Query string `json:"query" yaml:"query"`
	// Operator forces a step, e.g. disaster_safe which has no keyword.
	Operator   string               `json:"operator,omitempty" yaml:"operator,omitempty"`
	Criteria   []operator.Criterion `json:"criteria,omitempty" yaml:"criteria,omitempty"`
	HazardPath string               `json:"hazard_path,omitempty" yaml:"hazard_path,omitempty"`
	VectorPath string               `json:"vector_path,omitempty" yaml:"vector_path,omitempty"`
}

// Engine runs queries through reasoning, one operator branch, observe
// and complete.
type Engine struct {
	cfg        config.WorkflowConfig
	deps       operator.Deps
	boundaries BoundaryResolver
	dems       DEMFetcher
	metrics    *monitoring.Metrics
	rules      []Rule

	raster      *operator.RasterAnalysis
	vector      *operator.VectorAnalysis
	suitability *operator.Suitability
	ranking     *operator.Ranking
	disaster    *operator.DisasterSafe
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records routes and operator results in m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithRules replaces DefaultRules.
func WithRules(rules []Rule) Option {
	return func(e *Engine) {
		e.rules = rules
	}
}

// NewEngine creates an Engine.
func NewEngine(cfg config.WorkflowConfig, deps operator.Deps, boundaries BoundaryResolver, dems DEMFetcher, opts ...Option) *Engine {
	e := &Engine{
		cfg:         cfg,
		deps:        deps,
		boundaries:  boundaries,
		dems:        dems,
		rules:       DefaultRules,
		raster:      operator.NewRasterAnalysis(deps),
		vector:      operator.NewVectorAnalysis(deps),
		suitability: operator.NewSuitability(deps),
		ranking:     operator.NewRanking(deps),
		disaster:    operator.NewDisasterSafe(deps),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run answers one query. Operator failures end up as error results in the
// returned state; only a malformed request returns an error.
func (e *Engine) Run(ctx context.Context, req Request) (*State, error) {
	override, err := ParseStep(req.Operator)
	if err != nil {
		return nil, err
	}

	st := &State{
		ID:             uuid.New(),
		Query:          req.Query,
		Step:           StepReasoning,
		Threshold:      e.cfg.DefaultThreshold,
		Comparison:     raster.Comparison(e.cfg.DefaultComparison),
		BufferDistance: e.cfg.DefaultBufferDistance,
		Criteria:       req.Criteria,
		HazardMaskPath: req.HazardPath,
		VectorPath:     req.VectorPath,
	}
	if st.Comparison == "" {
		st.Comparison = raster.Below
	}

	e.reason(st)
	st.Step = Route(st.Query, override, e.rules)
	e.metrics.ObserveQuery(string(st.Step))
	st.Trace.Tracef("Routing to %s", st.Step)

	log := zap.L().With(zap.String("query_id", st.ID.String()), zap.String("region", st.Region))
	log.Info("workflow: routed", zap.String("step", string(st.Step)))

	e.dispatch(ctx, st)

	st.Step = StepObserve
	st.Trace.Tracef("Workflow complete")
	st.Step = StepComplete

	if st.Error != "" {
		log.Warn("workflow: completed with error", zap.String("error", st.Error))
	} else {
		log.Info("workflow: completed", zap.Int("results", len(st.Results)))
	}
	return st, nil
}

func (e *Engine) reason(st *State) {
	st.Trace.Tracef("Received query: '%s'", st.Query)

	name, _ := ExtractRegion(st.Query, e.cfg.DefaultRegion)
	st.RegionName = name
	st.Region = artifact.NormalizeRegion(name)
	st.Trace.Tracef("Extracted region: '%s'", name)

	if n, ok := ExtractTopN(st.Query); ok {
		st.TopN = n
		st.Trace.Tracef("Extracted top_n: %d", n)
	}
	if t, cmp, ok := ExtractThreshold(st.Query); ok {
		st.Threshold, st.Comparison = t, cmp
		st.Trace.Tracef("Extracted threshold: %s %g", cmp, t)
	}
	if d, ok := ExtractDistance(st.Query); ok && d > 0 {
		st.BufferDistance = d
		st.Trace.Tracef("Extracted distance: %gm", d)
	}
}

func (e *Engine) dispatch(ctx context.Context, st *State) {
	op := string(st.Step)

	if err := e.resolveBoundary(ctx, st); err != nil {
		e.fail(st, op, err)
		return
	}

	switch st.Step {
	case StepRaster:
		if err := e.resolveDEM(ctx, st); err != nil {
			e.fail(st, op, err)
			return
		}
		e.run(st, op, func() operator.Result {
			return e.raster.Run(operator.RasterRequest{
				Region:     st.Region,
				RegionPath: st.BoundaryPath,
				RasterPath: st.DEMPath,
				Threshold:  st.Threshold,
				Comparison: st.Comparison,
			}, &st.Trace)
		})

	case StepVector:
		if st.VectorPath == "" {
			st.VectorPath = st.BoundaryPath
		}
		e.run(st, op, func() operator.Result {
			return e.vector.Run(operator.VectorRequest{
				Region:     st.Region,
				VectorPath: st.VectorPath,
				Distance:   st.BufferDistance,
			}, &st.Trace)
		})

	case StepSuitability:
		e.runSuitability(ctx, st)

	case StepRanking:
		st.SuitabilityPath = e.deps.Layout.Suitability(st.Region)
		if !e.deps.Rasters.Exists(st.SuitabilityPath) && e.cfg.ChainSuitability {
			st.Trace.Tracef("No suitability raster for %s; running %s first", st.Region, StepSuitability)
			if r := e.runSuitability(ctx, st); !r.OK() {
				return
			}
		}
		topN := st.TopN
		if topN == 0 {
			topN = e.cfg.DefaultTopN
		}
		e.run(st, op, func() operator.Result {
			return e.ranking.Run(operator.RankingRequest{
				Region:          st.Region,
				SuitabilityPath: st.SuitabilityPath,
				TopN:            topN,
			}, &st.Trace)
		})

	case StepDisaster:
		e.run(st, op, func() operator.Result {
			return e.disaster.Run(operator.DisasterRequest{
				Region:     st.Region,
				HazardPath: st.HazardMaskPath,
			}, &st.Trace)
		})
	}
}

// runSuitability overlays the request criteria, or the region DEM when
// none were given.
func (e *Engine) runSuitability(ctx context.Context, st *State) operator.Result {
	op := string(StepSuitability)
	if len(st.Criteria) == 0 {
		if err := e.resolveDEM(ctx, st); err != nil {
			return e.fail(st, op, err)
		}
		st.Criteria = []operator.Criterion{{Path: st.DEMPath, Weight: e.cfg.DEMWeight}}
	}
	r := e.run(st, op, func() operator.Result {
		return e.suitability.Run(operator.SuitabilityRequest{
			Region:   st.Region,
			Criteria: st.Criteria,
		}, &st.Trace)
	})
	if p := r.Output(operator.OutputSuitability); p != "" {
		st.SuitabilityPath = p
	}
	return r
}

func (e *Engine) resolveBoundary(ctx context.Context, st *State) error {
	if e.boundaries == nil {
		return eris.New("workflow: no boundary resolver configured")
	}
	res, err := e.boundaries.Resolve(ctx, st.RegionName)
	if err != nil {
		return eris.Wrapf(err, "workflow: resolve boundary for %s", st.RegionName)
	}
	st.BoundaryPath = res.Path
	if res.Cached {
		st.Trace.Tracef("Using cached boundary %s", res.Path)
	} else {
		st.Trace.Tracef("Fetched boundary for %s from %s", st.RegionName, res.Source)
	}
	return nil
}

func (e *Engine) resolveDEM(ctx context.Context, st *State) error {
	if st.DEMPath != "" {
		return nil
	}
	if e.dems == nil {
		return eris.New("workflow: no DEM provider configured")
	}
	res, err := e.dems.Fetch(ctx, st.RegionName, st.BoundaryPath)
	if err != nil {
		return eris.Wrapf(err, "workflow: fetch DEM for %s", st.RegionName)
	}
	st.DEMPath = res.Path
	if res.Cached {
		st.Trace.Tracef("Using cached DEM %s", res.Path)
	} else {
		st.Trace.Tracef("Downloaded DEM for %s from %s", st.RegionName, res.Source)
	}
	return nil
}

func (e *Engine) run(st *State, op string, fn func() operator.Result) operator.Result {
	start := time.Now()
	r := fn()
	e.metrics.ObserveResult(op, string(r.Status), time.Since(start))
	st.record(r)
	return r
}

func (e *Engine) fail(st *State, op string, err error) operator.Result {
	st.Trace.Tracef("%s failed: %v", op, err)
	r := operator.Failure(op, err)
	e.metrics.ObserveResult(op, string(r.Status), 0)
	st.record(r)
	return r
}
