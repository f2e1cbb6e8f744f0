package redshift

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/lunarway/dwh-pipeline/internal/core/dwh"
)

// AnalyticsRunner runs read-only reporting queries. Each query gets its own
// read-only transaction and results are returned in query order.
type AnalyticsRunner struct {
	runner *stageRunner
}

func NewAnalyticsRunner(client Executor, eventListener ApplyEventLister, logger logr.Logger) *AnalyticsRunner {
	return &AnalyticsRunner{runner: &stageRunner{client: client, eventListener: eventListener, logger: logger}}
}

func (a *AnalyticsRunner) Run(ctx context.Context, queries []dwh.Statement) ([]dwh.QueryResult, error) {
	return a.runner.query(ctx, dwh.RunAnalytics, queries)
}
