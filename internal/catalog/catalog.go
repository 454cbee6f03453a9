// Package catalog maintains a rebuildable SQLite index over the
// downloaded archive. The catalog is derived state: the json record
// files are the source of truth, and deleting the database loses
// nothing (resume checks go against the filesystem, never the catalog).
package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/melhzy/litfetch/internal/archive"
	"github.com/melhzy/litfetch/internal/record"
)

// DBDirName is the directory under the publications root holding the
// catalog database.
const DBDirName = ".litfetch"

// DBFileName is the catalog database file name.
const DBFileName = "catalog.db"

// DB wraps the catalog's SQLite connection.
type DB struct {
	db *sql.DB
}

// selectFields is the standard field list for SELECT queries.
const selectFields = `pmcid, keyword, title, journal, doi, pmid,
	pub_year, authors_json, abstract, path, fetched_at`

// DefaultPath returns the catalog location under a publications root.
func DefaultPath(root string) string {
	return filepath.Join(root, DBDirName, DBFileName)
}

// Open opens or creates the catalog database at the given path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			pmcid TEXT PRIMARY KEY,
			keyword TEXT NOT NULL,
			title TEXT,
			journal TEXT,
			doi TEXT,
			pmid TEXT,
			pub_year INTEGER,
			authors_json TEXT,
			abstract TEXT,
			path TEXT NOT NULL,
			fetched_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_records_doi ON records(doi) WHERE doi IS NOT NULL AND doi != '';
		CREATE INDEX IF NOT EXISTS idx_records_keyword ON records(keyword);

		CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
			pmcid,
			title,
			abstract,
			authors_text,
			keyword
		);
	`
	_, err := db.Exec(schema)
	return err
}

// Entry is one catalogued record.
type Entry struct {
	PMCID     string   `json:"pmcid"`
	Keyword   string   `json:"keyword"`
	Title     string   `json:"title,omitempty"`
	Journal   string   `json:"journal,omitempty"`
	DOI       string   `json:"doi,omitempty"`
	PMID      string   `json:"pmid,omitempty"`
	PubYear   int      `json:"pub_year,omitempty"`
	Authors   []string `json:"authors,omitempty"`
	Abstract  string   `json:"abstract,omitempty"`
	Path      string   `json:"path"`
	FetchedAt string   `json:"fetched_at,omitempty"`
}

// Rebuild clears the catalog and repopulates it from every json record
// under the publications root. The keyword is taken from the directory
// the record lives in. xml and txt files carry no parsed metadata and
// are not indexed. Returns the number of indexed records.
func (d *DB) Rebuild(root string) (int, error) {
	if _, err := d.db.Exec("DELETE FROM records"); err != nil {
		return 0, fmt.Errorf("clearing records table: %w", err)
	}
	if _, err := d.db.Exec("DELETE FROM records_fts"); err != nil {
		return 0, fmt.Errorf("clearing records_fts table: %w", err)
	}

	stmt, err := d.db.Prepare(`
		INSERT OR REPLACE INTO records (` + selectFields + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	ftsStmt, err := d.db.Prepare(`
		INSERT INTO records_fts (pmcid, title, abstract, authors_text, keyword)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing fts insert: %w", err)
	}
	defer ftsStmt.Close()

	count := 0
	err = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			// The catalog's own directory is not part of the archive.
			if entry.Name() == DBDirName {
				return filepath.SkipDir
			}
			return nil
		}
		name := entry.Name()
		if !strings.HasPrefix(name, "PMC") || !strings.HasSuffix(name, ".json") {
			return nil
		}

		rec, err := archive.ReadRecord(path)
		if err != nil {
			// A malformed file is skipped, not fatal; the next
			// rebuild picks it up once repaired.
			return nil
		}

		keyword := filepath.Base(filepath.Dir(path))
		authorsJSON, _ := json.Marshal(rec.Metadata.Authors)
		year, _ := strconv.Atoi(rec.Metadata.Year)

		if _, err := stmt.Exec(
			rec.PMCID, keyword,
			rec.Metadata.Title, rec.Metadata.Journal,
			rec.Metadata.DOI, rec.Metadata.PMID,
			year, string(authorsJSON),
			rec.Metadata.Abstract, path,
			rec.DownloadDate.Format("2006-01-02T15:04:05Z07:00"),
		); err != nil {
			return fmt.Errorf("inserting %s: %w", rec.PMCID, err)
		}
		if _, err := ftsStmt.Exec(
			rec.PMCID, rec.Metadata.Title, rec.Metadata.Abstract,
			strings.Join(rec.Metadata.Authors, " "), keyword,
		); err != nil {
			return fmt.Errorf("indexing %s: %w", rec.PMCID, err)
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("walking archive: %w", err)
	}
	return count, nil
}

func scanEntry(row interface{ Scan(...any) error }) (*Entry, error) {
	var e Entry
	var authorsJSON sql.NullString
	var title, journal, doi, pmid, abstract, fetchedAt sql.NullString
	var year sql.NullInt64
	if err := row.Scan(
		&e.PMCID, &e.Keyword, &title, &journal, &doi, &pmid,
		&year, &authorsJSON, &abstract, &e.Path, &fetchedAt,
	); err != nil {
		return nil, err
	}
	e.Title = title.String
	e.Journal = journal.String
	e.DOI = doi.String
	e.PMID = pmid.String
	e.Abstract = abstract.String
	e.FetchedAt = fetchedAt.String
	e.PubYear = int(year.Int64)
	if authorsJSON.Valid && authorsJSON.String != "" {
		_ = json.Unmarshal([]byte(authorsJSON.String), &e.Authors)
	}
	return &e, nil
}

// GetByID looks up one record by its PMC identifier (with or without
// the PMC prefix). Returns nil when absent.
func (d *DB) GetByID(id string) (*Entry, error) {
	row := d.db.QueryRow(
		"SELECT "+selectFields+" FROM records WHERE pmcid = ?",
		record.DisplayID(id))
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying record: %w", err)
	}
	return e, nil
}

// GetByDOI looks up one record by DOI. Returns nil when absent.
func (d *DB) GetByDOI(doi string) (*Entry, error) {
	row := d.db.QueryRow(
		"SELECT "+selectFields+" FROM records WHERE doi = ? COLLATE NOCASE", doi)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying record by DOI: %w", err)
	}
	return e, nil
}

// Search runs a full-text query over titles, abstracts, authors, and
// keywords, best matches first.
func (d *DB) Search(query string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.Query(`
		SELECT `+selectFields+` FROM records
		WHERE pmcid IN (
			SELECT pmcid FROM records_fts WHERE records_fts MATCH ? ORDER BY rank
		)
		LIMIT ?`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching catalog: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// List returns catalogued records, optionally filtered by keyword
// directory, newest first.
func (d *DB) List(keyword string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		rows *sql.Rows
		err  error
	)
	if keyword != "" {
		rows, err = d.db.Query(
			"SELECT "+selectFields+" FROM records WHERE keyword = ? ORDER BY fetched_at DESC LIMIT ?",
			archive.Slug(keyword), limit)
	} else {
		rows, err = d.db.Query(
			"SELECT "+selectFields+" FROM records ORDER BY fetched_at DESC LIMIT ?", limit)
	}
	if err != nil {
		return nil, fmt.Errorf("listing catalog: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

func collectEntries(rows *sql.Rows) ([]*Entry, error) {
	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// KeywordCount is the number of catalogued records for one keyword
// directory.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// ListKeywords returns per-keyword record counts, largest first.
func (d *DB) ListKeywords() ([]KeywordCount, error) {
	rows, err := d.db.Query(
		"SELECT keyword, COUNT(*) FROM records GROUP BY keyword ORDER BY COUNT(*) DESC, keyword")
	if err != nil {
		return nil, fmt.Errorf("listing keywords: %w", err)
	}
	defer rows.Close()

	var counts []KeywordCount
	for rows.Next() {
		var kc KeywordCount
		if err := rows.Scan(&kc.Keyword, &kc.Count); err != nil {
			return nil, fmt.Errorf("scanning keyword count: %w", err)
		}
		counts = append(counts, kc)
	}
	return counts, rows.Err()
}

// Count returns the total number of catalogued records.
func (d *DB) Count() (int, error) {
	var n int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM records").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}
