package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sells-group/geoquery/internal/artifact"
	"github.com/sells-group/geoquery/internal/config"
	"github.com/sells-group/geoquery/internal/monitoring"
	"github.com/sells-group/geoquery/internal/operator"
	"github.com/sells-group/geoquery/internal/raster"
	"github.com/sells-group/geoquery/internal/resilience"
	"github.com/sells-group/geoquery/internal/workflow"
	"github.com/sells-group/geoquery/pkg/boundary"
	"github.com/sells-group/geoquery/pkg/dem"
)

// queryEnv holds the collaborators shared by the query, region and serve
// commands.
type queryEnv struct {
	Layout     artifact.Layout
	Metrics    *monitoring.Metrics
	Boundaries *boundary.Resolver
	DEMs       *dem.Fetcher
	Engine     *workflow.Engine
}

// initEnv wires boundary and DEM providers, the raster store and the
// workflow engine from cfg.
func initEnv(cfg *config.Config, mode string) (*queryEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	layout := artifact.NewLayout(cfg.Data.Dir)
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	retry := resilience.FromConfig(cfg.Retry)

	var sources []boundary.Source
	if cfg.Boundary.ShapefileDir != "" {
		sources = append(sources, &boundary.ShapefileSource{Dir: cfg.Boundary.ShapefileDir})
	}
	sources = append(sources, boundary.NewNominatim(
		boundary.WithBaseURL(cfg.Boundary.NominatimURL),
		boundary.WithUserAgent(cfg.Boundary.UserAgent),
		boundary.WithRateLimit(cfg.Boundary.RateLimit),
		boundary.WithHTTPClient(&http.Client{Timeout: seconds(cfg.Boundary.TimeoutSecs)}),
		boundary.WithRetry(retry),
	))
	resolver := boundary.NewResolver(layout, sources, boundary.WithMetrics(metrics))

	provider := dem.NewOpenTopography(cfg.DEM.APIKey,
		dem.WithBaseURL(cfg.DEM.BaseURL),
		dem.WithDEMType(cfg.DEM.DEMType),
		dem.WithHTTPClient(&http.Client{Timeout: seconds(cfg.DEM.TimeoutSecs)}),
		dem.WithRetry(retry),
	)
	fetcher := dem.NewFetcher(layout, provider, dem.WithMetrics(metrics))

	deps := operator.Deps{
		Rasters: raster.NewGeoTIFF(cfg.Raster.MaxCells),
		Layout:  layout,
	}
	engine := workflow.NewEngine(cfg.Workflow, deps, resolver, fetcher, workflow.WithMetrics(metrics))

	return &queryEnv{
		Layout:     layout,
		Metrics:    metrics,
		Boundaries: resolver,
		DEMs:       fetcher,
		Engine:     engine,
	}, nil
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
