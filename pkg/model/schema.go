package model

import (
	"fmt"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// Column describes one column of a known table
type Column struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

// Table describes one known table
type Table struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Columns     []*Column `yaml:"columns"`
}

// Schema is the set of tables the validator accepts references to. An
// empty schema disables identifier cross-checking.
type Schema struct {
	Tables []*Table `yaml:"tables"`
}

// LoadSchema reads a schema definition from a YAML file
func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read schema file", goerr.V("path", path))
	}

	var schema Schema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, goerr.Wrap(err, "failed to parse schema file", goerr.V("path", path))
	}

	for _, table := range schema.Tables {
		if table.Name == "" {
			return nil, goerr.New("schema table without a name", goerr.V("path", path))
		}
	}

	return &schema, nil
}

// Lookup returns the table with the given name, case-insensitive
func (s *Schema) Lookup(name string) *Table {
	if s == nil {
		return nil
	}
	for _, table := range s.Tables {
		if strings.EqualFold(table.Name, name) {
			return table
		}
	}
	return nil
}

// HasColumn reports whether the table has a column with the given name,
// case-insensitive
func (t *Table) HasColumn(name string) bool {
	for _, col := range t.Columns {
		if strings.EqualFold(col.Name, name) {
			return true
		}
	}
	return false
}

// Summary renders a compact one-table-per-block description used as the
// schema section of the generation prompt
func (s *Schema) Summary() string {
	if s == nil || len(s.Tables) == 0 {
		return ""
	}

	var lines []string
	for _, table := range s.Tables {
		head := fmt.Sprintf("Table: %s", table.Name)
		if table.Description != "" {
			head += " -- " + table.Description
		}
		lines = append(lines, head)
		for _, col := range table.Columns {
			line := fmt.Sprintf("- %s (%s)", col.Name, col.Type)
			if col.Description != "" {
				line += " -- " + col.Description
			}
			lines = append(lines, line)
		}
	}

	return strings.Join(lines, "\n")
}
