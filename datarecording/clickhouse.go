package datarecording

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/fatih/structs"
	"github.com/tebeka/atexit"
)

// batchSender is one bulk insert.
type batchSender interface {
	Append(v ...any) error
	Send() error
}

// columnStore is the part of a ClickHouse connection the writer needs.
type columnStore interface {
	Exec(ctx context.Context, query string) error
	PrepareBatch(ctx context.Context, query string) (batchSender, error)
	Close() error
}

type clickhouseStore struct {
	conn clickhouse.Conn
}

func (s clickhouseStore) Exec(ctx context.Context, query string) error {
	return s.conn.Exec(ctx, query)
}

func (s clickhouseStore) PrepareBatch(ctx context.Context, query string) (batchSender, error) {
	b, err := s.conn.PrepareBatch(ctx, query)
	if err != nil {
		return nil, err
	}

	return b, nil
}

func (s clickhouseStore) Close() error {
	return s.conn.Close()
}

// clickhouseWriter records tables into ClickHouse with bulk inserts.
type clickhouseWriter struct {
	lock       sync.Mutex
	store      columnStore
	tables     map[string]*table
	batchSize  int
	entryCount int
}

func newClickHouseWriter(dsn string, batchSize int) (*clickhouseWriter, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("datarecording: parsing ClickHouse DSN: %w", err)
	}

	if opts.DialTimeout == 0 {
		opts.DialTimeout = 30 * time.Second
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("datarecording: connecting to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("datarecording: pinging ClickHouse: %w", err)
	}

	w := newClickHouseWriterWithStore(clickhouseStore{conn: conn}, batchSize)

	atexit.Register(func() { _ = w.Flush() })

	return w, nil
}

func newClickHouseWriterWithStore(store columnStore, batchSize int) *clickhouseWriter {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &clickhouseWriter{
		store:     store,
		tables:    make(map[string]*table),
		batchSize: batchSize,
	}
}

func columnType(kind reflect.Kind) string {
	switch kind {
	case reflect.Bool:
		return "Bool"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "Int64"
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "UInt64"
	case reflect.Float32, reflect.Float64:
		return "Float64"
	default:
		return "String"
	}
}

// columnValue widens v to the Go type of its column.
func columnValue(v any) any {
	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	default:
		return v
	}
}

func createTableSQL(tableName string, sample any) (string, error) {
	names, err := columnsOf(sample)
	if err != nil {
		return "", err
	}

	t := reflect.TypeOf(sample)
	columns := make([]string, len(names))

	for i, name := range names {
		field, _ := t.FieldByName(name)
		columns[i] = name + " " + columnType(field.Type.Kind())
	}

	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n\t%s\n) ENGINE = MergeTree()\nORDER BY tuple()",
		tableName, strings.Join(columns, ",\n\t")), nil
}

func (w *clickhouseWriter) CreateTable(tableName string, sampleEntry any) error {
	query, err := createTableSQL(tableName, sampleEntry)
	if err != nil {
		return err
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	if _, exists := w.tables[tableName]; exists {
		return fmt.Errorf("datarecording: table %s already exists", tableName)
	}

	if err := w.store.Exec(context.Background(), query); err != nil {
		return fmt.Errorf("datarecording: creating table %s: %w", tableName, err)
	}

	w.tables[tableName] = &table{structType: reflect.TypeOf(sampleEntry)}

	return nil
}

func (w *clickhouseWriter) InsertData(tableName string, entry any) error {
	w.lock.Lock()

	t, exists := w.tables[tableName]
	if !exists {
		w.lock.Unlock()
		return fmt.Errorf("datarecording: table %s does not exist", tableName)
	}

	if err := t.accepts(entry); err != nil {
		w.lock.Unlock()
		return err
	}

	t.entries = append(t.entries, entry)
	w.entryCount++
	full := w.entryCount >= w.batchSize

	w.lock.Unlock()

	if full {
		return w.Flush()
	}

	return nil
}

func (w *clickhouseWriter) ListTables() []string {
	w.lock.Lock()
	defer w.lock.Unlock()

	tables := make([]string, 0, len(w.tables))
	for name := range w.tables {
		tables = append(tables, name)
	}

	sort.Strings(tables)

	return tables
}

func (w *clickhouseWriter) Flush() error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.entryCount == 0 {
		return nil
	}

	ctx := context.Background()

	for name, t := range w.tables {
		if len(t.entries) == 0 {
			continue
		}

		if err := w.sendBatch(ctx, name, t.entries); err != nil {
			return err
		}

		t.entries = t.entries[:0]
	}

	w.entryCount = 0

	return nil
}

func (w *clickhouseWriter) sendBatch(ctx context.Context, tableName string, entries []any) error {
	batch, err := w.store.PrepareBatch(ctx, "INSERT INTO "+tableName)
	if err != nil {
		return fmt.Errorf("datarecording: preparing batch for %s: %w", tableName, err)
	}

	for _, entry := range entries {
		values := structs.Values(entry)
		for i, v := range values {
			values[i] = columnValue(v)
		}

		if err := batch.Append(values...); err != nil {
			return fmt.Errorf("datarecording: appending to %s: %w", tableName, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("datarecording: sending batch for %s: %w", tableName, err)
	}

	return nil
}

func (w *clickhouseWriter) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}

	return w.store.Close()
}
