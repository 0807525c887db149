package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/quotebook/internal/observability/metrics"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		metrics.NewRegistry,
		func(r *prometheus.Registry) prometheus.Registerer { return r },
		metrics.NewGatherer,
		metrics.New,
	),
)
