package datarecording

import (
	"database/sql"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/structs"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	// SQLite drivers, registered as "sqlite" (pure Go) and "sqlite3" (cgo).
	_ "github.com/glebarez/go-sqlite"
	_ "github.com/mattn/go-sqlite3"
)

const (
	driverCGo  = "sqlite3"
	driverPure = "sqlite"
)

// sqliteWriter is the writer that writes data into a SQLite database.
type sqliteWriter struct {
	*sql.DB

	lock       sync.Mutex
	dbName     string
	tables     map[string]*table
	batchSize  int
	entryCount int
}

func newSQLiteWriter(driver, path string, batchSize int) (*sqliteWriter, error) {
	w := &sqliteWriter{
		dbName:    path,
		batchSize: batchSize,
		tables:    make(map[string]*table),
	}

	if err := w.open(driver); err != nil {
		return nil, err
	}

	atexit.Register(func() { _ = w.Flush() })

	return w, nil
}

// NewWithDB creates a DataRecorder writing into an open SQLite database.
func NewWithDB(db *sql.DB) DataRecorder {
	return &sqliteWriter{
		DB:        db,
		batchSize: defaultBatchSize,
		tables:    make(map[string]*table),
	}
}

func (w *sqliteWriter) open(driver string) error {
	if w.dbName == "" {
		w.dbName = "typedcomm_timing_" + xid.New().String()
	}

	filename := w.dbName + ".sqlite3"

	if _, err := os.Stat(filename); err == nil {
		return fmt.Errorf("datarecording: file %s already exists", filename)
	}

	db, err := sql.Open(driver, filename)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	w.DB = db

	return nil
}

func (w *sqliteWriter) CreateTable(tableName string, sampleEntry any) error {
	names, err := columnsOf(sampleEntry)
	if err != nil {
		return err
	}

	w.lock.Lock()
	defer w.lock.Unlock()

	if _, exists := w.tables[tableName]; exists {
		return fmt.Errorf("datarecording: table %s already exists", tableName)
	}

	createTableSQL := "CREATE TABLE " + tableName +
		" (\n\t" + strings.Join(names, ", \n\t") + "\n);"
	if _, err := w.Exec(createTableSQL); err != nil {
		return fmt.Errorf("datarecording: creating table %s: %w", tableName, err)
	}

	w.tables[tableName] = &table{structType: reflect.TypeOf(sampleEntry)}

	return nil
}

func (w *sqliteWriter) InsertData(tableName string, entry any) error {
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

func (w *sqliteWriter) ListTables() []string {
	w.lock.Lock()
	defer w.lock.Unlock()

	tables := make([]string, 0, len(w.tables))
	for name := range w.tables {
		tables = append(tables, name)
	}

	sort.Strings(tables)

	return tables
}

func (w *sqliteWriter) Flush() error {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.entryCount == 0 {
		return nil
	}

	tx, err := w.Begin()
	if err != nil {
		return err
	}

	for name, t := range w.tables {
		if err := insertAll(tx, name, t.entries); err != nil {
			_ = tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	for _, t := range w.tables {
		t.entries = nil
	}

	w.entryCount = 0

	return nil
}

func insertAll(tx *sql.Tx, tableName string, entries []any) error {
	if len(entries) == 0 {
		return nil
	}

	placeholders := make([]string, len(structs.Names(entries[0])))
	for i := range placeholders {
		placeholders[i] = "?"
	}

	stmt, err := tx.Prepare(
		"INSERT INTO " + tableName + " VALUES (" + strings.Join(placeholders, ", ") + ")")
	if err != nil {
		return fmt.Errorf("datarecording: preparing insert into %s: %w", tableName, err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		if _, err := stmt.Exec(structs.Values(entry)...); err != nil {
			return fmt.Errorf("datarecording: inserting into %s: %w", tableName, err)
		}
	}

	return nil
}

func (w *sqliteWriter) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}

	return w.DB.Close()
}
