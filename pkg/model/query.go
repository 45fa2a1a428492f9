package model

import "github.com/m-mizutani/goerr/v2"

// GeneratedSQL is the outcome of extraction and validation of raw model
// output. Invalid results carry a human-readable Reason.
type GeneratedSQL struct {
	Raw    string
	SQL    string
	Valid  bool
	Reason string
}

// QueryResult is a typed row-set. Rows are positionally aligned to Columns.
type QueryResult struct {
	Columns []string
	Rows    [][]any
}

// Validate checks that every row has exactly len(Columns) values
func (r *QueryResult) Validate() error {
	for i, row := range r.Rows {
		if len(row) != len(r.Columns) {
			return goerr.New("row width does not match column count",
				goerr.V("row", i), goerr.V("width", len(row)), goerr.V("columns", len(r.Columns)))
		}
	}
	return nil
}
