package redshift

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/lunarway/dwh-pipeline/internal/core/dwh"
)

// SchemaManager drops and creates the warehouse tables. Both directions are
// safe to repeat: drops use IF EXISTS and creates use IF NOT EXISTS.
type SchemaManager struct {
	runner *stageRunner
}

func NewSchemaManager(client Executor, eventListener ApplyEventLister, logger logr.Logger) *SchemaManager {
	return &SchemaManager{runner: &stageRunner{client: client, eventListener: eventListener, logger: logger}}
}

func (s *SchemaManager) DropAll(ctx context.Context, tables []dwh.TableDefinition) error {
	statements := make([]dwh.Statement, 0, len(tables))
	for _, table := range tables {
		statements = append(statements, dwh.Statement{Name: table.Name, SQL: table.Drop})
	}
	return s.runner.exec(ctx, dwh.DropTables, statements, TableDropped)
}

func (s *SchemaManager) CreateAll(ctx context.Context, tables []dwh.TableDefinition) error {
	statements := make([]dwh.Statement, 0, len(tables))
	for _, table := range tables {
		statements = append(statements, dwh.Statement{Name: table.Name, SQL: table.Create})
	}
	return s.runner.exec(ctx, dwh.CreateTables, statements, TableCreated)
}
