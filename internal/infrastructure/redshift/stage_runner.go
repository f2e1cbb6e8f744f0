package redshift

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/lunarway/dwh-pipeline/internal/core/dwh"
)

type ApplyEventType int

const (
	StatementExecuted ApplyEventType = iota
	QueryExecuted
	TableDropped
	TableCreated
	RowsCounted
	StageCompleted
)

func (t ApplyEventType) ToString() string {
	switch t {
	case StatementExecuted:
		return "StatementExecuted"
	case QueryExecuted:
		return "QueryExecuted"
	case TableDropped:
		return "TableDropped"
	case TableCreated:
		return "TableCreated"
	case RowsCounted:
		return "RowsCounted"
	case StageCompleted:
		return "StageCompleted"
	default:
		return fmt.Sprintf("%d", int(t))
	}
}

type ApplyEventLister interface {
	Handle(eventType ApplyEventType, name string)
}

// stageRunner executes the statements of one stage in order and stops at the
// first failure. Statements already committed stay committed.
type stageRunner struct {
	client        Executor
	eventListener ApplyEventLister
	logger        logr.Logger
}

func (r *stageRunner) exec(ctx context.Context, stage dwh.Stage, statements []dwh.Statement, eventType ApplyEventType) error {

	for i, statement := range statements {
		r.logger.V(1).Info("Executing statement", "stage", stage, "index", i+1, "statement", statement.Name)

		if err := r.client.Exec(ctx, statement.SQL); err != nil {
			return &dwh.StatementError{Stage: stage, Index: i + 1, Name: statement.Name, Err: err}
		}
		r.eventListener.Handle(eventType, statement.Name)
	}

	r.eventListener.Handle(StageCompleted, string(stage))
	r.logger.Info("Stage completed", "stage", stage, "statements", len(statements))
	return nil
}

func (r *stageRunner) query(ctx context.Context, stage dwh.Stage, statements []dwh.Statement) ([]dwh.QueryResult, error) {

	results := make([]dwh.QueryResult, 0, len(statements))
	for i, statement := range statements {
		r.logger.V(1).Info("Running query", "stage", stage, "index", i+1, "query", statement.Name)

		rows, err := r.client.Query(ctx, statement.SQL)
		if err != nil {
			return results, &dwh.StatementError{Stage: stage, Index: i + 1, Name: statement.Name, Err: err}
		}
		r.eventListener.Handle(QueryExecuted, statement.Name)
		results = append(results, dwh.QueryResult{Name: statement.Name, Rows: rows})
	}

	r.eventListener.Handle(StageCompleted, string(stage))
	r.logger.Info("Stage completed", "stage", stage, "queries", len(statements))
	return results, nil
}
