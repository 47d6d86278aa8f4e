// Package manifest loads archive inventory listings: the CSV or XLSX sheet
// shipped alongside a collection that maps each file to its provenance.
// Manifest fields are authoritative; discovery and extraction only fill what
// the manifest leaves blank.
package manifest

import (
	"encoding/csv"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/bobmatnyc/dedup-cli/internal/model"
)

// Entry is one manifest row: provenance for a single archive file.
type Entry struct {
	FileName     string
	Collection   string
	SourceName   string
	URL          string
	DocumentType string
	Title        string
	DownloadDate time.Time
}

// columnAliases maps each logical field to the header spellings seen across
// archive inventories. The first alias present in the header claims the
// field; unknown columns are ignored.
var columnAliases = map[string][]string{
	"file":       {"file", "filename", "file_name", "file name", "document", "path"},
	"collection": {"collection", "series", "record_group", "record group"},
	"source":     {"source", "source_name", "source name", "archive"},
	"url":        {"url", "link", "download_url", "download url"},
	"date":       {"download_date", "download date", "downloaded", "date", "release_date"},
	"type":       {"type", "document_type", "doc_type"},
	"title":      {"title", "description"},
}

var dateLayouts = []string{"2006-01-02", "01/02/2006", "1/2/2006"}

// Manifest holds the parsed entries, indexed for per-file lookup.
type Manifest struct {
	entries []Entry
	byPath  map[string]Entry
	byBase  map[string]Entry
}

// Load reads a manifest file, dispatching on extension.
func Load(file string) (*Manifest, error) {
	var (
		header []string
		rows   [][]string
		err    error
	)
	switch ext := strings.ToLower(filepath.Ext(file)); ext {
	case ".csv":
		header, rows, err = readCSV(file, ',')
	case ".tsv":
		header, rows, err = readCSV(file, '\t')
	case ".xlsx":
		header, rows, err = readXLSX(file)
	default:
		return nil, eris.Errorf("manifest: unsupported format %q for %s", ext, file)
	}
	if err != nil {
		return nil, err
	}
	return build(file, header, rows)
}

// Len returns the number of usable entries.
func (m *Manifest) Len() int { return len(m.entries) }

// Entries returns all entries in manifest order.
func (m *Manifest) Entries() []Entry { return m.entries }

// Lookup finds the entry for an archive file path, matching the normalized
// relative path first and the bare file name second. Inventories rarely know
// the mount prefix discovery adds, so the base name is the usual match.
func (m *Manifest) Lookup(filePath string) (Entry, bool) {
	key := normalizePath(filePath)
	if e, ok := m.byPath[key]; ok {
		return e, true
	}
	if e, ok := m.byBase[path.Base(key)]; ok {
		return e, true
	}
	return Entry{}, false
}

// Apply merges manifest provenance into discovered documents: collection,
// source name, and download date override discovery defaults, and document
// type and title seed the metadata so extracted values do not displace them.
// Returns the number of documents matched.
func (m *Manifest) Apply(docs []model.Document) int {
	matched := 0
	for i := range docs {
		e, ok := m.Lookup(docs[i].FilePath)
		if !ok {
			continue
		}
		matched++
		if e.Collection != "" {
			docs[i].Collection = e.Collection
		}
		if e.SourceName != "" {
			docs[i].SourceName = e.SourceName
		}
		if !e.DownloadDate.IsZero() {
			docs[i].DownloadDate = e.DownloadDate
		}
		if e.DocumentType != "" {
			docs[i].Metadata.DocumentType = e.DocumentType
		}
		if e.Title != "" {
			docs[i].Metadata.Title = e.Title
		}
	}
	return matched
}

func build(src string, header []string, rows [][]string) (*Manifest, error) {
	colIdx := mapColumns(header)
	if _, ok := resolve(colIdx, "file"); !ok {
		return nil, eris.Errorf("manifest: no file column in %s (header: %s)", src, strings.Join(header, ", "))
	}

	m := &Manifest{
		byPath: make(map[string]Entry),
		byBase: make(map[string]Entry),
	}
	skipped := 0
	for _, record := range rows {
		e := entryFrom(record, colIdx)
		if e.FileName == "" {
			skipped++
			continue
		}
		m.entries = append(m.entries, e)
		key := normalizePath(e.FileName)
		m.byPath[key] = e
		m.byBase[path.Base(key)] = e
	}
	if skipped > 0 {
		zap.L().Warn("manifest rows without a file name skipped",
			zap.String("manifest", src),
			zap.Int("skipped", skipped))
	}
	return m, nil
}

func entryFrom(record []string, colIdx map[string]int) Entry {
	return Entry{
		FileName:     getField(record, colIdx, "file"),
		Collection:   getField(record, colIdx, "collection"),
		SourceName:   getField(record, colIdx, "source"),
		URL:          getField(record, colIdx, "url"),
		DocumentType: getField(record, colIdx, "type"),
		Title:        getField(record, colIdx, "title"),
		DownloadDate: parseDate(getField(record, colIdx, "date")),
	}
}

func readCSV(file string, comma rune) ([]string, [][]string, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "manifest: open %s", file)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.Comma = comma
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil, eris.Errorf("manifest: %s is empty", file)
	}
	if err != nil {
		return nil, nil, eris.Wrapf(err, "manifest: read header of %s", file)
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, eris.Wrapf(err, "manifest: read %s", file)
		}
		rows = append(rows, record)
	}
	return header, rows, nil
}

func readXLSX(file string) ([]string, [][]string, error) {
	f, err := xlsx.OpenFile(file)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "manifest: open %s", file)
	}
	if len(f.Sheets) == 0 {
		return nil, nil, eris.Errorf("manifest: %s has no sheets", file)
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, nil, eris.Errorf("manifest: %s sheet is empty", file)
	}

	header := rowStrings(sheet.Rows[0])
	rows := make([][]string, 0, len(sheet.Rows)-1)
	for _, row := range sheet.Rows[1:] {
		rows = append(rows, rowStrings(row))
	}
	return header, rows, nil
}

func rowStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		cells[i] = strings.TrimSpace(cell.String())
	}
	return cells
}

// mapColumns builds a header name → index map, lower-cased and trimmed.
func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		m[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return m
}

// resolve finds the column index for a logical field through its aliases.
func resolve(colIdx map[string]int, field string) (int, bool) {
	for _, alias := range columnAliases[field] {
		if idx, ok := colIdx[alias]; ok {
			return idx, true
		}
	}
	return 0, false
}

func getField(record []string, colIdx map[string]int, field string) string {
	idx, ok := resolve(colIdx, field)
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.Trim(strings.TrimSpace(record[idx]), `"`)
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func normalizePath(p string) string {
	return strings.ToLower(filepath.ToSlash(strings.TrimSpace(p)))
}
