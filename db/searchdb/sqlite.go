package searchdb

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/meghashyamc/corescout/errs"
	"github.com/meghashyamc/corescout/logger"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	pathWeight = 2.0
	textWeight = 3.0
)

const recordColumns = `id, source_path, file_type, extracted_text, latitude, longitude,
	raw_coordinate_text, size_bytes, modified_at, file_hash, processed_at`

type SQLiteDB struct {
	db     *sql.DB
	logger logger.Logger

	// writeMu serialises writers; readers rely on WAL snapshots.
	writeMu sync.Mutex
}

// Open opens (or creates) the SQLite store at path and applies pending
// migrations.
func Open(logger logger.Logger, path string) (*SQLiteDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &errs.StorageError{Op: "create store directory", Err: err}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &errs.StorageError{Op: "open store", Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errs.StorageError{Op: "open store", Err: err}
	}

	s := &SQLiteDB{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, &errs.StorageError{Op: "migrate store", Err: err}
	}

	logger.Info("opened search store", "path", path)
	return s, nil
}

func (s *SQLiteDB) Close() error {
	if err := s.db.Close(); err != nil {
		s.logger.Error("could not close search store", "err", err.Error())
		return &errs.StorageError{Op: "close store", Err: err}
	}
	return nil
}

func (s *SQLiteDB) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &errs.StorageError{Op: "ping store", Err: err}
	}
	return nil
}

func (s *SQLiteDB) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d_", &version); err != nil {
			return fmt.Errorf("parsing migration version from %q: %w", entry.Name(), err)
		}

		var applied int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&applied); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if applied > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func docTable(name string) string { return `"doc_` + name + `"` }
func ftsTable(name string) string { return `"fts_` + name + `"` }

// indexDDL creates the record table, its FTS5 index and the triggers keeping
// the two in sync.
func indexDDL(name string) []string {
	doc, fts := docTable(name), ftsTable(name)
	return []string{
		fmt.Sprintf(`CREATE TABLE %s (
			id                  INTEGER PRIMARY KEY,
			source_path         TEXT NOT NULL UNIQUE,
			file_type           TEXT NOT NULL,
			extracted_text      TEXT NOT NULL,
			latitude            REAL,
			longitude           REAL,
			raw_coordinate_text TEXT,
			size_bytes          INTEGER NOT NULL DEFAULT 0,
			modified_at         TEXT NOT NULL,
			file_hash           TEXT NOT NULL DEFAULT '',
			processed_at        TEXT NOT NULL,
			CHECK (
				(latitude IS NULL AND longitude IS NULL)
				OR (latitude BETWEEN -90 AND 90
					AND longitude BETWEEN -180 AND 180
					AND raw_coordinate_text IS NOT NULL)
			)
		)`, doc),
		fmt.Sprintf(`CREATE VIRTUAL TABLE %s USING fts5(
			source_path,
			extracted_text,
			content=%s,
			content_rowid='id',
			tokenize='unicode61 remove_diacritics 2'
		)`, fts, quoteLiteral("doc_"+name)),
		fmt.Sprintf(`CREATE TRIGGER "doc_%[1]s_ai" AFTER INSERT ON %[2]s BEGIN
			INSERT INTO %[3]s(rowid, source_path, extracted_text) VALUES (new.id, new.source_path, new.extracted_text);
		END`, name, doc, fts),
		fmt.Sprintf(`CREATE TRIGGER "doc_%[1]s_ad" AFTER DELETE ON %[2]s BEGIN
			INSERT INTO %[3]s(%[3]s, rowid, source_path, extracted_text) VALUES ('delete', old.id, old.source_path, old.extracted_text);
		END`, name, doc, fts),
		fmt.Sprintf(`CREATE TRIGGER "doc_%[1]s_au" AFTER UPDATE ON %[2]s BEGIN
			INSERT INTO %[3]s(%[3]s, rowid, source_path, extracted_text) VALUES ('delete', old.id, old.source_path, old.extracted_text);
			INSERT INTO %[3]s(rowid, source_path, extracted_text) VALUES (new.id, new.source_path, new.extracted_text);
		END`, name, doc, fts),
	}
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (s *SQLiteDB) IndexExists(ctx context.Context, name string) (bool, error) {
	if err := ValidateIndexName(name); err != nil {
		return false, err
	}
	return indexExists(ctx, s.db, name)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func indexExists(ctx context.Context, q queryer, name string) (bool, error) {
	var count int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM indexes WHERE name = ?", name).Scan(&count); err != nil {
		return false, &errs.StorageError{Op: "look up index", Err: err}
	}
	return count > 0, nil
}

func (s *SQLiteDB) ReplaceIndex(ctx context.Context, name string, overwrite bool, records []Record, warningCount int) (IndexInfo, error) {
	if err := ValidateIndexName(name); err != nil {
		return IndexInfo{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return IndexInfo{}, &errs.StorageError{Op: "begin index write", Err: err}
	}
	defer tx.Rollback()

	exists, err := indexExists(ctx, tx, name)
	if err != nil {
		return IndexInfo{}, err
	}
	if exists && !overwrite {
		return IndexInfo{}, &errs.IndexAlreadyExistsError{Name: name}
	}

	statements := []string{
		"DROP TABLE IF EXISTS " + ftsTable(name),
		"DROP TABLE IF EXISTS " + docTable(name),
	}
	statements = append(statements, indexDDL(name)...)
	for _, statement := range statements {
		if _, err := tx.ExecContext(ctx, statement); err != nil {
			return IndexInfo{}, &errs.StorageError{Op: "create index tables", Err: err}
		}
	}

	insert, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %s (
		source_path, file_type, extracted_text, latitude, longitude,
		raw_coordinate_text, size_bytes, modified_at, file_hash, processed_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, docTable(name)))
	if err != nil {
		return IndexInfo{}, &errs.StorageError{Op: "prepare record insert", Err: err}
	}
	defer insert.Close()

	geoCount := 0
	for _, record := range records {
		if record.HasCoordinates() {
			geoCount++
		}
		if _, err := insert.ExecContext(ctx,
			record.SourcePath, record.FileType, record.ExtractedText,
			record.Latitude, record.Longitude, record.RawCoordinateText,
			record.SizeBytes, formatTime(record.ModifiedAt), record.FileHash, formatTime(record.ProcessedAt),
		); err != nil {
			return IndexInfo{}, &errs.StorageError{Op: fmt.Sprintf("insert record %q", record.SourcePath), Err: err}
		}
	}

	info := IndexInfo{
		Name:         name,
		RecordCount:  len(records),
		GeoCount:     geoCount,
		WarningCount: warningCount,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO indexes (name, record_count, geo_count, warning_count, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			record_count = excluded.record_count,
			geo_count = excluded.geo_count,
			warning_count = excluded.warning_count,
			created_at = excluded.created_at`,
		info.Name, info.RecordCount, info.GeoCount, info.WarningCount, formatTime(info.CreatedAt),
	); err != nil {
		return IndexInfo{}, &errs.StorageError{Op: "update catalog", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return IndexInfo{}, &errs.StorageError{Op: "commit index write", Err: err}
	}

	s.logger.Info("wrote index", "index", name, "records", info.RecordCount, "geo_records", geoCount, "overwrite", exists)
	return info, nil
}

func (s *SQLiteDB) Search(ctx context.Context, name string, expression string, limit int) (*Page, error) {
	if err := ValidateIndexName(name); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &errs.StorageError{Op: "begin search", Err: err}
	}
	defer tx.Rollback()

	exists, err := indexExists(ctx, tx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &errs.IndexNotFoundError{Name: name}
	}

	var (
		countQuery string
		rowsQuery  string
		args       []any
	)
	if expression == "" {
		countQuery = "SELECT COUNT(*) FROM " + docTable(name)
		rowsQuery = fmt.Sprintf("SELECT %s, 0.0 AS score FROM %s ORDER BY source_path ASC LIMIT ?", recordColumns, docTable(name))
	} else {
		fts := ftsTable(name)
		countQuery = fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s MATCH ?", fts, fts)
		rowsQuery = fmt.Sprintf(`SELECT %s, -bm25(%s, %v, %v) AS score
			FROM %s JOIN %s d ON d.id = %s.rowid
			WHERE %s MATCH ?
			ORDER BY score DESC, d.source_path ASC
			LIMIT ?`,
			prefixedColumns("d"), fts, pathWeight, textWeight, fts, docTable(name), fts, fts)
		args = append(args, expression)
	}

	page := &Page{}
	if err := tx.QueryRowContext(ctx, countQuery, args...).Scan(&page.Total); err != nil {
		return nil, s.queryError("count matches", expression, err)
	}

	rows, err := tx.QueryContext(ctx, rowsQuery, append(args, limit)...)
	if err != nil {
		return nil, s.queryError("query matches", expression, err)
	}
	defer rows.Close()

	for rows.Next() {
		var hit Hit
		if err := scanRecord(rows, &hit.Record, &hit.Score); err != nil {
			return nil, &errs.StorageError{Op: "read match", Err: err}
		}
		page.Hits = append(page.Hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, s.queryError("read matches", expression, err)
	}

	return page, nil
}

// queryError maps FTS5 parse failures to query syntax errors and wraps the rest.
func (s *SQLiteDB) queryError(op string, expression string, err error) error {
	message := err.Error()
	if strings.Contains(message, "fts5: syntax error") || strings.Contains(message, "unterminated string") ||
		strings.Contains(message, "unknown special query") {
		return &errs.QuerySyntaxError{Query: expression, Position: -1, Reason: message}
	}
	s.logger.Error("search query failed", "op", op, "err", message)
	return &errs.StorageError{Op: op, Err: err}
}

func (s *SQLiteDB) GetRecord(ctx context.Context, name string, id int64) (Record, error) {
	if err := ValidateIndexName(name); err != nil {
		return Record{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, &errs.StorageError{Op: "begin record lookup", Err: err}
	}
	defer tx.Rollback()

	exists, err := indexExists(ctx, tx, name)
	if err != nil {
		return Record{}, err
	}
	if !exists {
		return Record{}, &errs.IndexNotFoundError{Name: name}
	}

	var record Record
	row := tx.QueryRowContext(ctx, fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", recordColumns, docTable(name)), id)
	err = scanRecord(row, &record, nil)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, &errs.RecordNotFoundError{Index: name, ID: id}
	}
	if err != nil {
		return Record{}, &errs.StorageError{Op: "read record", Err: err}
	}
	return record, nil
}

func (s *SQLiteDB) GetIndex(ctx context.Context, name string) (IndexInfo, error) {
	if err := ValidateIndexName(name); err != nil {
		return IndexInfo{}, err
	}

	row := s.db.QueryRowContext(ctx, "SELECT name, record_count, geo_count, warning_count, created_at FROM indexes WHERE name = ?", name)
	info, err := scanIndexInfo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return IndexInfo{}, &errs.IndexNotFoundError{Name: name}
	}
	if err != nil {
		return IndexInfo{}, &errs.StorageError{Op: "read catalog", Err: err}
	}
	return info, nil
}

func (s *SQLiteDB) ListIndexes(ctx context.Context) ([]IndexInfo, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT name, record_count, geo_count, warning_count, created_at FROM indexes ORDER BY name ASC")
	if err != nil {
		return nil, &errs.StorageError{Op: "list catalog", Err: err}
	}
	defer rows.Close()

	indexes := []IndexInfo{}
	for rows.Next() {
		info, err := scanIndexInfo(rows)
		if err != nil {
			return nil, &errs.StorageError{Op: "read catalog", Err: err}
		}
		indexes = append(indexes, info)
	}
	if err := rows.Err(); err != nil {
		return nil, &errs.StorageError{Op: "list catalog", Err: err}
	}
	return indexes, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func prefixedColumns(alias string) string {
	columns := strings.Split(recordColumns, ",")
	for i, column := range columns {
		columns[i] = alias + "." + strings.TrimSpace(column)
	}
	return strings.Join(columns, ", ")
}

// scanRecord reads recordColumns, followed by the score when score is non-nil.
func scanRecord(row scanner, record *Record, score *float64) error {
	var (
		latitude, longitude sql.NullFloat64
		raw                 sql.NullString
		modifiedAt          string
		processedAt         string
	)
	dest := []any{
		&record.ID, &record.SourcePath, &record.FileType, &record.ExtractedText,
		&latitude, &longitude, &raw, &record.SizeBytes, &modifiedAt, &record.FileHash, &processedAt,
	}
	if score != nil {
		dest = append(dest, score)
	}
	if err := row.Scan(dest...); err != nil {
		return err
	}

	if latitude.Valid && longitude.Valid {
		record.Latitude = &latitude.Float64
		record.Longitude = &longitude.Float64
	}
	if raw.Valid {
		record.RawCoordinateText = &raw.String
	}
	record.ModifiedAt = parseTime(modifiedAt)
	record.ProcessedAt = parseTime(processedAt)
	return nil
}

func scanIndexInfo(row scanner) (IndexInfo, error) {
	var info IndexInfo
	var createdAt string
	if err := row.Scan(&info.Name, &info.RecordCount, &info.GeoCount, &info.WarningCount, &createdAt); err != nil {
		return IndexInfo{}, err
	}
	info.CreatedAt = parseTime(createdAt)
	return info, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
