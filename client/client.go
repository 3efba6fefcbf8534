// Package client defines the contract of the external MetricFlow client the
// tasks delegate to. Materialization and SQL generation happen behind this
// interface; callers only build a client against a config file and pass its
// results through.
package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidTableName is returned by ParseSQLTable for malformed identifiers.
var ErrInvalidTableName = errors.New("invalid sql table name")

// SQLTable references a table in the data warehouse. DBName is optional.
type SQLTable struct {
	DBName     string `json:"db_name,omitempty" yaml:"db_name,omitempty"`
	SchemaName string `json:"schema_name" yaml:"schema_name"`
	TableName  string `json:"table_name" yaml:"table_name"`
}

// String renders the table as db.schema.table, or schema.table without a db.
func (t SQLTable) String() string {
	if t.DBName == "" {
		return t.SchemaName + "." + t.TableName
	}
	return t.DBName + "." + t.SchemaName + "." + t.TableName
}

// ParseSQLTable parses "schema.table" or "db.schema.table".
func ParseSQLTable(s string) (SQLTable, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	for _, p := range parts {
		if p == "" {
			return SQLTable{}, fmt.Errorf("%w: %q", ErrInvalidTableName, s)
		}
	}
	switch len(parts) {
	case 2:
		return SQLTable{SchemaName: parts[0], TableName: parts[1]}, nil
	case 3:
		return SQLTable{DBName: parts[0], SchemaName: parts[1], TableName: parts[2]}, nil
	default:
		return SQLTable{}, fmt.Errorf("%w: %q", ErrInvalidTableName, s)
	}
}

// MaterializeRequest names a materialization and the optional time range to
// build it for. Time formats are validated by the client.
type MaterializeRequest struct {
	MaterializationName string
	StartTime           string
	EndTime             string
}

// Client is the subset of the MetricFlow client used by the tasks.
type Client interface {
	// Materialize builds the materialization and returns the created table.
	Materialize(ctx context.Context, req MaterializeRequest) (SQLTable, error)
	// DropMaterialization drops the materialization table. It returns false
	// when the table does not exist.
	DropMaterialization(ctx context.Context, materializationName string) (bool, error)
}

// Factory builds a Client configured from the file at configPath.
type Factory func(ctx context.Context, configPath string) (Client, error)
