// Package archive persists fetched article records under a per-keyword
// directory. Filenames are derived from the article identifier, so the
// directory doubles as the resume state: an existing file means the
// article was already downloaded.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/melhzy/litfetch/internal/record"
)

var slugPattern = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Slug derives a filesystem-safe directory name from a search keyword.
func Slug(keyword string) string {
	slug := slugPattern.ReplaceAllString(strings.TrimSpace(keyword), "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		return "keyword"
	}
	return slug
}

// Dir is one keyword's output directory, bound to a single output format.
type Dir struct {
	path   string
	format record.Format
}

// Open creates (if needed) the keyword directory under root and verifies
// it is usable. A root that cannot be created or written is a
// configuration problem surfaced before any fetch is dispatched.
func Open(root, keyword string, format record.Format) (*Dir, error) {
	path := filepath.Join(root, Slug(keyword))
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &Dir{path: path, format: format}, nil
}

// Path returns where the record for id is (or would be) stored.
func (d *Dir) Path(id string) string {
	return filepath.Join(d.path, record.DisplayID(id)+d.format.Ext())
}

// Root returns the directory path.
func (d *Dir) Root() string {
	return d.path
}

// Exists reports whether a record for id is already on disk. Consulted
// before fetching; a hit skips the fetch entirely, which is what makes a
// re-run of the same query resumable.
func (d *Dir) Exists(id string) bool {
	_, err := os.Stat(d.Path(id))
	return err == nil
}

// Write persists one record. The write is atomic: the content goes to a
// temp file in the destination directory and is renamed into place, so a
// concurrent reader (or an abrupt termination) never observes a partial
// file, only a missing one.
func (d *Dir) Write(rec *record.Record) error {
	var data []byte
	switch d.format {
	case record.FormatJSON:
		var err error
		data, err = json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding record %s: %w", rec.PMCID, err)
		}
	case record.FormatXML:
		data = []byte(rec.XML)
	case record.FormatText:
		data = []byte(rec.Text)
	default:
		return fmt.Errorf("unknown output format %q", d.format)
	}

	dest := d.Path(rec.PMCID)
	tmp, err := os.CreateTemp(d.path, "."+rec.PMCID+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}

// Read loads a stored record back. Only the json format carries the full
// structured record; xml and txt files are raw payloads.
func (d *Dir) Read(id string) (*record.Record, error) {
	if d.format != record.FormatJSON {
		return nil, fmt.Errorf("format %s does not store structured records", d.format)
	}
	return ReadRecord(d.Path(id))
}

// ReadRecord loads one stored json record from an arbitrary path.
func ReadRecord(path string) (*record.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading record: %w", err)
	}
	var rec record.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parsing record %s: %w", path, err)
	}
	return &rec, nil
}
