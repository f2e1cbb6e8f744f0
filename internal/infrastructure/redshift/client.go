package redshift

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/lunarway/dwh-pipeline/internal/core/dwh"
	"github.com/lunarway/dwh-pipeline/pkg/configuration"

	_ "github.com/lib/pq"
)

// Executor runs warehouse statements. Every call is its own transaction.
type Executor interface {
	Exec(ctx context.Context, statement string) error
	Query(ctx context.Context, statement string) ([]dwh.Row, error)
}

// Client holds the single warehouse connection used by a stage.
type Client struct {
	db *sql.DB
}

func ConnectionString(settings configuration.ConnectionSettings) string {
	sslmode := settings.SslMode
	if sslmode == "" {
		sslmode = "require"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(settings.User), url.QueryEscape(settings.Password), settings.Host, settings.Port, settings.Database, sslmode)
}

func NewClient(settings configuration.ConnectionSettings) (*Client, error) {
	db, err := sql.Open("postgres", ConnectionString(settings))
	if err != nil {
		return nil, err
	}
	return NewClientWithDB(db), nil
}

func NewClientWithDB(db *sql.DB) *Client {
	db.SetMaxOpenConns(1)
	return &Client{db: db}
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) Exec(ctx context.Context, statement string) error {

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, statement)
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// Query fetches every row inside a read-only transaction. Text columns are
// returned as strings.
func (c *Client) Query(ctx context.Context, statement string) ([]dwh.Row, error) {

	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, err
	}

	result, err := queryRows(ctx, tx, statement)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	return result, tx.Commit()
}

func queryRows(ctx context.Context, tx *sql.Tx, statement string) ([]dwh.Row, error) {

	rows, err := tx.QueryContext(ctx, statement)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []dwh.Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		for i, value := range values {
			if b, ok := value.([]byte); ok {
				values[i] = string(b)
			}
		}
		result = append(result, values)
	}

	return result, rows.Err()
}
