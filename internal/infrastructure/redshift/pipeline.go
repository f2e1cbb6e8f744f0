package redshift

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/lunarway/dwh-pipeline/internal/core/dwh"
)

/*
LoadPipeline moves the raw feeds into the star schema in three stages:

	copy-to-staging             COPY the event and song feeds from S3
	insert-dimensions-and-fact  users, songs, artists, time, then songplays
	verify-counts               one row count per table

A stage only starts once the previous one has finished, and the first failing
statement ends the run. Populating is not re-run safe, running it twice on the
same staging data duplicates rows in any table without an enforced key.
*/
type LoadPipeline struct {
	runner *stageRunner
	logger logr.Logger
}

func NewLoadPipeline(client Executor, eventListener ApplyEventLister, logger logr.Logger) *LoadPipeline {
	return &LoadPipeline{
		runner: &stageRunner{client: client, eventListener: eventListener, logger: logger},
		logger: logger,
	}
}

func (p *LoadPipeline) CopyToStaging(ctx context.Context, sources dwh.Sources) error {

	statements, err := dwh.CopyStatements(sources)
	if err != nil {
		return fmt.Errorf("%s: %w", dwh.CopyToStaging, err)
	}

	p.logger.Info("Copying feeds into staging", "events", sources.EventsURI, "songs", sources.SongsURI, "region", sources.Region)
	return p.runner.exec(ctx, dwh.CopyToStaging, statements, StatementExecuted)
}

func (p *LoadPipeline) PopulateWarehouse(ctx context.Context, inserts []dwh.Statement) error {
	return p.runner.exec(ctx, dwh.InsertDimensionsAndFact, inserts, StatementExecuted)
}

func (p *LoadPipeline) VerifyCounts(ctx context.Context, counts []dwh.Statement) ([]dwh.Count, error) {

	results, err := p.runner.query(ctx, dwh.VerifyCounts, counts)
	if err != nil {
		return nil, err
	}

	var result []dwh.Count
	for i, queryResult := range results {
		for _, row := range queryResult.Rows {
			count, err := toCount(row)
			if err != nil {
				return result, &dwh.StatementError{Stage: dwh.VerifyCounts, Index: i + 1, Name: queryResult.Name, Err: err}
			}
			p.runner.eventListener.Handle(RowsCounted, fmt.Sprintf("%s%d", count.Label, count.Count))
			p.logger.Info("Row count", "table", count.Label, "rows", count.Count)
			result = append(result, count)
		}
	}
	return result, nil
}

// Run executes the three load stages in order.
func (p *LoadPipeline) Run(ctx context.Context, sources dwh.Sources) ([]dwh.Count, error) {

	if err := p.CopyToStaging(ctx, sources); err != nil {
		return nil, err
	}

	if err := p.PopulateWarehouse(ctx, dwh.InsertStatements()); err != nil {
		return nil, err
	}

	return p.VerifyCounts(ctx, dwh.CountStatements())
}

func toCount(row dwh.Row) (dwh.Count, error) {
	if len(row) != 2 {
		return dwh.Count{}, fmt.Errorf("expected a label and a count, got %d columns", len(row))
	}

	label := fmt.Sprint(row[0])

	switch v := row[1].(type) {
	case int64:
		return dwh.Count{Label: label, Count: v}, nil
	case int:
		return dwh.Count{Label: label, Count: int64(v)}, nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return dwh.Count{}, fmt.Errorf("count for %s is not a number: %w", label, err)
		}
		return dwh.Count{Label: label, Count: n}, nil
	default:
		return dwh.Count{}, fmt.Errorf("count for %s has unexpected type %T", label, v)
	}
}
