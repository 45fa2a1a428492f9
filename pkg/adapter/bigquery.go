package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"

	"github.com/m-mizutani/askdb/pkg/model"
)

// BigQuery is the warehouse-side boundary: query execution with dry-run
// scan limiting, plus table introspection used for corpus training.
type BigQuery interface {
	Executor

	// ListTables returns the table names in a dataset
	ListTables(ctx context.Context, datasetID string) ([]string, error)

	// TableDDL renders a CREATE TABLE statement for a table from its
	// live metadata
	TableDDL(ctx context.Context, datasetID, table string) (string, error)
}

type bigqueryClient struct {
	client      *bigquery.Client
	scanLimitMB int64
}

// BigQueryOption is a functional option for BigQuery client
type BigQueryOption func(*bigqueryClient)

// WithScanLimitMB bounds how many megabytes a query may scan; the bound
// is checked with a dry run before execution.
func WithScanLimitMB(limit int64) BigQueryOption {
	return func(bq *bigqueryClient) {
		bq.scanLimitMB = limit
	}
}

// NewBigQuery creates a new BigQuery client
func NewBigQuery(ctx context.Context, projectID string, opts ...BigQueryOption) (BigQuery, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create BigQuery client")
	}

	bq := &bigqueryClient{
		client:      client,
		scanLimitMB: 1024,
	}

	for _, opt := range opts {
		opt(bq)
	}

	return bq, nil
}

func (bq *bigqueryClient) Execute(ctx context.Context, gen *model.GeneratedSQL) (*model.QueryResult, error) {
	if gen == nil || !gen.Valid {
		return nil, goerr.Wrap(model.ErrNotReadOnly, "executor refused unvalidated sql")
	}

	// Dry run first: rejects malformed SQL early and enforces the scan
	// limit before any bytes are billed.
	q := bq.client.Query(gen.SQL)
	q.DryRun = true
	dryJob, err := q.Run(ctx)
	if err != nil {
		return nil, goerr.Wrap(model.ErrQueryError, "dry-run rejected query",
			goerr.V("sql", gen.SQL), goerr.V("cause", err.Error()))
	}

	if status := dryJob.LastStatus(); status != nil && status.Statistics != nil {
		scanned := status.Statistics.TotalBytesProcessed
		if scanned > bq.scanLimitMB*1024*1024 {
			return nil, goerr.Wrap(model.ErrQueryError, "query exceeds scan limit",
				goerr.V("scanned_mb", scanned/1024/1024), goerr.V("limit_mb", bq.scanLimitMB))
		}
	}

	q = bq.client.Query(gen.SQL)
	job, err := q.Run(ctx)
	if err != nil {
		return nil, goerr.Wrap(model.ErrQueryError, "failed to run query", goerr.V("cause", err.Error()))
	}

	status, err := job.Wait(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, goerr.Wrap(model.ErrQueryTimeout, "query did not finish in time", goerr.V("job_id", job.ID()))
		}
		return nil, goerr.Wrap(model.ErrQueryError, "failed to wait for query", goerr.V("cause", err.Error()))
	}
	if err := status.Err(); err != nil {
		return nil, goerr.Wrap(model.ErrQueryError, "query execution failed", goerr.V("cause", err.Error()))
	}

	it, err := job.Read(ctx)
	if err != nil {
		return nil, goerr.Wrap(model.ErrQueryError, "failed to read query result", goerr.V("cause", err.Error()))
	}

	result := &model.QueryResult{}
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(model.ErrQueryError, "failed to iterate query result", goerr.V("cause", err.Error()))
		}

		if result.Columns == nil {
			for _, field := range it.Schema {
				result.Columns = append(result.Columns, field.Name)
			}
		}

		values := make([]any, len(row))
		for i, v := range row {
			values[i] = v
		}
		result.Rows = append(result.Rows, values)
	}

	return result, nil
}

func (bq *bigqueryClient) ListTables(ctx context.Context, datasetID string) ([]string, error) {
	it := bq.client.Dataset(datasetID).Tables(ctx)

	var names []string
	for {
		table, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list tables", goerr.V("dataset", datasetID))
		}
		names = append(names, table.TableID)
	}

	return names, nil
}

func (bq *bigqueryClient) TableDDL(ctx context.Context, datasetID, table string) (string, error) {
	metadata, err := bq.client.Dataset(datasetID).Table(table).Metadata(ctx)
	if err != nil {
		return "", goerr.Wrap(err, "failed to get table metadata",
			goerr.V("dataset", datasetID), goerr.V("table", table))
	}

	return renderDDL(table, metadata.Schema), nil
}

// renderDDL turns BigQuery schema metadata into the DDL text stored as
// a schema fact
func renderDDL(table string, schema bigquery.Schema) string {
	var cols []string
	for _, field := range schema {
		col := fmt.Sprintf("  %s %s", field.Name, field.Type)
		if field.Description != "" {
			col += " -- " + field.Description
		}
		cols = append(cols, col)
	}

	return fmt.Sprintf("CREATE TABLE %s (\n%s\n)", table, strings.Join(cols, ",\n"))
}
