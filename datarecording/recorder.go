// Package datarecording stores timing tables in databases.
package datarecording

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/fatih/structs"
)

// DataRecorder is a backend that can record and store data.
type DataRecorder interface {
	// CreateTable creates a table whose columns are the exported fields of
	// sampleEntry.
	CreateTable(tableName string, sampleEntry any) error

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any) error

	// ListTables returns the names of the tables created so far.
	ListTables() []string

	// Flush writes all buffered entries into the database.
	Flush() error

	// Close flushes and releases the database.
	Close() error
}

// Backend names accepted by NewWithConfig.
const (
	BackendSQLite     = "sqlite"
	BackendSQLitePure = "sqlite-pure"
	BackendClickHouse = "clickhouse"
)

const defaultBatchSize = 100000

// RecorderConfig selects and configures a recording backend.
type RecorderConfig struct {
	// Type is one of the backend names. Empty means BackendSQLite.
	Type string

	// Path is the SQLite file name without extension. A unique name is
	// generated when it is empty.
	Path string

	// ConnStr is the ClickHouse DSN, e.g.
	// clickhouse://localhost:9000/db?username=default.
	ConnStr string

	// BatchSize is the number of buffered entries that triggers a flush.
	BatchSize int
}

// New creates a recorder writing into the SQLite file path.sqlite3.
func New(path string) (DataRecorder, error) {
	return NewWithConfig(RecorderConfig{Type: BackendSQLite, Path: path})
}

// NewWithConfig creates the recorder described by cfg.
func NewWithConfig(cfg RecorderConfig) (DataRecorder, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	switch cfg.Type {
	case "", BackendSQLite:
		return newSQLiteWriter(driverCGo, cfg.Path, cfg.BatchSize)
	case BackendSQLitePure:
		return newSQLiteWriter(driverPure, cfg.Path, cfg.BatchSize)
	case BackendClickHouse:
		return newClickHouseWriter(cfg.ConnStr, cfg.BatchSize)
	default:
		return nil, fmt.Errorf("datarecording: unknown backend %q", cfg.Type)
	}
}

var errInvalidEntry = errors.New("datarecording: entry is invalid")

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

// columnsOf returns the column names of a table holding entries like sample.
func columnsOf(sample any) ([]string, error) {
	t := reflect.TypeOf(sample)
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %T is not a struct", errInvalidEntry, sample)
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.IsExported() && !isAllowedKind(field.Type.Kind()) {
			return nil, fmt.Errorf("%w: field %s has kind %s",
				errInvalidEntry, field.Name, field.Type.Kind())
		}
	}

	names := structs.Names(sample)
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %T has no exported fields", errInvalidEntry, sample)
	}

	return names, nil
}

type table struct {
	structType reflect.Type
	entries    []any
}

func (t *table) accepts(entry any) error {
	if reflect.TypeOf(entry) != t.structType {
		return fmt.Errorf("%w: %T does not match %s", errInvalidEntry, entry, t.structType)
	}

	return nil
}
