package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/bobmatnyc/dedup-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. The pool is capped at a single connection so concurrent writers
// queue instead of failing with SQLITE_BUSY.
func NewSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "sqlite: mkdir %s", dir)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) FindByContentHash(ctx context.Context, contentHash string) (*model.CanonicalDocument, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+canonicalColumns+` FROM canonical_documents WHERE content_hash = ?`,
		contentHash,
	)
	return scanCanonical(row)
}

func (s *SQLiteStore) GetCanonical(ctx context.Context, canonicalID string) (*model.CanonicalDocument, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+canonicalColumns+` FROM canonical_documents WHERE canonical_id = ?`,
		canonicalID,
	)
	return scanCanonical(row)
}

// InsertCanonical creates a canonical document together with its first
// source and the create log entry in one transaction. The document's primary
// source fields are derived from src. Returns ErrContentHashExists when the
// content hash is already registered.
func (s *SQLiteStore) InsertCanonical(ctx context.Context, doc *model.CanonicalDocument, src *model.Source) error {
	if doc == nil || src == nil {
		return eris.New("sqlite: insert canonical: nil document or source")
	}
	if doc.CanonicalID == "" || doc.ContentHash == "" {
		return eris.New("sqlite: insert canonical: missing canonical id or content hash")
	}

	now := time.Now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.PrimarySource = src.FilePath
	doc.SelectionReason = selectionReason(src, nil)
	doc.OCRQuality = src.QualityScore
	if !doc.Completeness.Valid() {
		doc.Completeness = model.CompletenessUnknown
	}
	src.CanonicalID = doc.CanonicalID
	src.AddedAt = now

	recipientsJSON, err := json.Marshal(doc.Recipients)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal recipients")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert canonical")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO canonical_documents (`+canonicalColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.CanonicalID, doc.ContentHash, doc.FileHash, doc.SimHash,
		doc.DocumentType, doc.Title, doc.Date, doc.Subject, doc.Sender,
		string(recipientsJSON), doc.PageCount, doc.OCRQuality, doc.HasRedactions,
		string(doc.Completeness), doc.PrimarySource, doc.SelectionReason,
		doc.MergedInto, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrContentHashExists
		}
		return eris.Wrapf(err, "sqlite: insert canonical %s", doc.CanonicalID)
	}

	if _, err := sqliteInsertSource(ctx, tx, src); err != nil {
		return err
	}

	entry := &model.OperationLogEntry{
		Timestamp:   now,
		Operation:   model.OpCreate,
		CanonicalID: doc.CanonicalID,
		Source:      src.FilePath,
		Status:      model.OpStatusOK,
		Message:     "canonical document created",
		Details: map[string]string{
			"content_hash": doc.ContentHash,
			"collection":   src.Collection,
		},
	}
	if err := sqliteAppendLog(ctx, tx, entry); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit insert canonical")
}

// AttachSource adds src to an existing canonical document and recomputes the
// primary source. Attaching the same file path twice is a no-op.
func (s *SQLiteStore) AttachSource(ctx context.Context, canonicalID string, src *model.Source) (*AttachResult, error) {
	if src == nil {
		return nil, eris.New("sqlite: attach source: nil source")
	}

	now := time.Now().UTC()
	src.CanonicalID = canonicalID
	src.AddedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin attach source")
	}
	defer tx.Rollback() //nolint:errcheck

	doc, err := scanCanonical(tx.QueryRowContext(ctx,
		`SELECT `+canonicalColumns+` FROM canonical_documents WHERE canonical_id = ?`,
		canonicalID,
	))
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, eris.Errorf("sqlite: canonical not found: %s", canonicalID)
	}
	if doc.Retired() {
		return nil, eris.Errorf("sqlite: canonical %s retired into %s", canonicalID, doc.MergedInto)
	}

	attached, err := sqliteInsertSource(ctx, tx, src)
	if err != nil {
		return nil, err
	}

	if attached {
		entry := &model.OperationLogEntry{
			Timestamp:   now,
			Operation:   model.OpAttachSource,
			CanonicalID: canonicalID,
			Source:      src.FilePath,
			Status:      model.OpStatusOK,
			Message:     "source attached",
			Details: map[string]string{
				"collection": src.Collection,
				"quality":    strconv.FormatFloat(src.QualityScore, 'f', 2, 64),
			},
		}
		if err := sqliteAppendLog(ctx, tx, entry); err != nil {
			return nil, err
		}
	}

	reassigned, primary, err := sqliteRecomputePrimary(ctx, tx, doc, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit attach source")
	}
	return &AttachResult{Attached: attached, Reassigned: reassigned, PrimarySource: primary}, nil
}

func (s *SQLiteStore) ListSources(ctx context.Context, canonicalID string) ([]model.Source, error) {
	return sqliteListSources(ctx, s.db, canonicalID)
}

func (s *SQLiteStore) ResolveSourcePath(ctx context.Context, filePath string) (*model.CanonicalDocument, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+canonicalColumns+` FROM canonical_documents
		 WHERE canonical_id = (SELECT canonical_id FROM sources WHERE file_path = ? ORDER BY added_at DESC LIMIT 1)`,
		filePath,
	)
	return scanCanonical(row)
}

func (s *SQLiteStore) ListCanonical(ctx context.Context, filter Filter) ([]model.CanonicalDocument, error) {
	query := `SELECT ` + canonicalColumns + ` FROM canonical_documents WHERE 1=1`
	var args []any

	if !filter.IncludeRetired {
		query += ` AND merged_into = ''`
	}
	if filter.DocumentType != "" {
		query += ` AND document_type = ?`
		args = append(args, filter.DocumentType)
	}
	if filter.Collection != "" {
		query += ` AND canonical_id IN (SELECT canonical_id FROM sources WHERE collection = ?)`
		args = append(args, filter.Collection)
	}
	query += ` ORDER BY canonical_id`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list canonical")
	}
	defer rows.Close()

	var docs []model.CanonicalDocument
	for rows.Next() {
		d, err := scanCanonical(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, eris.Wrap(rows.Err(), "sqlite: list canonical iterate")
}

// MergeCanonical retires fromID in favor of toID. Sources are re-parented to
// the surviving document and its primary source is recomputed.
func (s *SQLiteStore) MergeCanonical(ctx context.Context, fromID, toID, reason string) error {
	if fromID == toID {
		return eris.New("sqlite: merge: identical canonical ids")
	}

	now := time.Now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin merge")
	}
	defer tx.Rollback() //nolint:errcheck

	from, err := scanCanonical(tx.QueryRowContext(ctx,
		`SELECT `+canonicalColumns+` FROM canonical_documents WHERE canonical_id = ?`, fromID))
	if err != nil {
		return err
	}
	if from == nil {
		return eris.Errorf("sqlite: canonical not found: %s", fromID)
	}
	if from.Retired() {
		return eris.Errorf("sqlite: canonical %s already retired into %s", fromID, from.MergedInto)
	}

	to, err := scanCanonical(tx.QueryRowContext(ctx,
		`SELECT `+canonicalColumns+` FROM canonical_documents WHERE canonical_id = ?`, toID))
	if err != nil {
		return err
	}
	if to == nil {
		return eris.Errorf("sqlite: canonical not found: %s", toID)
	}
	if to.Retired() {
		return eris.Errorf("sqlite: canonical %s already retired into %s", toID, to.MergedInto)
	}

	// Drop movers whose file path already exists under the survivor, then
	// re-parent the rest so their provenance rows survive intact.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sources WHERE canonical_id = ?
		 AND file_path IN (SELECT file_path FROM sources WHERE canonical_id = ?)`,
		fromID, toID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: merge dedupe sources %s", fromID)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE sources SET canonical_id = ? WHERE canonical_id = ?`, toID, fromID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: merge move sources %s", fromID)
	}
	moved, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: merge rows affected")
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE canonical_documents SET merged_into = ?, updated_at = ? WHERE canonical_id = ?`,
		toID, now, fromID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: retire canonical %s", fromID)
	}

	if _, _, err := sqliteRecomputePrimary(ctx, tx, to, now); err != nil {
		return err
	}

	entry := &model.OperationLogEntry{
		Timestamp:   now,
		Operation:   model.OpMerge,
		CanonicalID: toID,
		Status:      model.OpStatusOK,
		Message:     "merged " + fromID + " into " + toID,
		Details: map[string]string{
			"merged_from":   fromID,
			"sources_moved": strconv.FormatInt(moved, 10),
			"reason":        reason,
		},
	}
	if err := sqliteAppendLog(ctx, tx, entry); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit merge")
}

func (s *SQLiteStore) SavePageHashes(ctx context.Context, canonicalID string, pages map[int]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save page hashes")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM document_pages WHERE canonical_id = ?`, canonicalID); err != nil {
		return eris.Wrapf(err, "sqlite: clear page hashes %s", canonicalID)
	}
	for _, page := range sortedPageNumbers(pages) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO document_pages (canonical_id, page_number, page_hash) VALUES (?, ?, ?)`,
			canonicalID, page, pages[page],
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert page hash %s/%d", canonicalID, page)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save page hashes")
}

func (s *SQLiteStore) PageHashes(ctx context.Context, canonicalID string) (map[int]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT page_number, page_hash FROM document_pages WHERE canonical_id = ? ORDER BY page_number`,
		canonicalID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: page hashes %s", canonicalID)
	}
	defer rows.Close()

	pages := map[int]string{}
	for rows.Next() {
		var page int
		var hash string
		if err := rows.Scan(&page, &hash); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan page hash")
		}
		pages[page] = hash
	}
	return pages, eris.Wrap(rows.Err(), "sqlite: page hashes iterate")
}

func (s *SQLiteStore) Log(ctx context.Context, entry *model.OperationLogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin log")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := sqliteAppendLog(ctx, tx, entry); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit log")
}

func (s *SQLiteStore) ListOperations(ctx context.Context, filter OpFilter) ([]model.OperationLogEntry, error) {
	query := `SELECT ` + oplogColumns + ` FROM operation_log WHERE 1=1`
	var args []any

	if filter.CanonicalID != "" {
		query += ` AND canonical_id = ?`
		args = append(args, filter.CanonicalID)
	}
	if filter.Operation != "" {
		query += ` AND operation = ?`
		args = append(args, string(filter.Operation))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.Since.IsZero() {
		// Stored timestamps are UTC; the bound value must match or the
		// text comparison is meaningless.
		query += ` AND ts >= ?`
		args = append(args, filter.Since.UTC())
	}
	query += ` ORDER BY ts DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list operations")
	}
	defer rows.Close()

	var entries []model.OperationLogEntry
	for rows.Next() {
		var e model.OperationLogEntry
		var detailsJSON string
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Operation, &e.CanonicalID,
			&e.Source, &e.Status, &e.Message, &detailsJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan operation")
		}
		if detailsJSON != "" && detailsJSON != "{}" {
			if err := json.Unmarshal([]byte(detailsJSON), &e.Details); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal operation details")
			}
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list operations iterate")
}

func (s *SQLiteStore) Stats(ctx context.Context) (*model.RegistryStats, error) {
	var st model.RegistryStats
	err := s.db.QueryRowContext(ctx, `SELECT
		(SELECT COUNT(*) FROM canonical_documents WHERE merged_into = ''),
		(SELECT COUNT(*) FROM canonical_documents WHERE merged_into <> ''),
		(SELECT COUNT(*) FROM sources),
		(SELECT COUNT(*) FROM operation_log),
		(SELECT COUNT(*) FROM operation_log WHERE status = 'flagged'),
		(SELECT COUNT(DISTINCT collection) FROM sources WHERE collection <> '')`,
	).Scan(&st.CanonicalDocuments, &st.RetiredDocuments, &st.Sources,
		&st.Operations, &st.FlaggedConflicts, &st.Collections)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats")
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT ts FROM operation_log ORDER BY ts DESC LIMIT 1`,
	).Scan(&st.LastOperationAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, eris.Wrap(err, "sqlite: stats last operation")
	}
	return &st, nil
}

// helpers

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCanonical(row scannable) (*model.CanonicalDocument, error) {
	var d model.CanonicalDocument
	var recipientsJSON string

	err := row.Scan(&d.CanonicalID, &d.ContentHash, &d.FileHash, &d.SimHash,
		&d.DocumentType, &d.Title, &d.Date, &d.Subject, &d.Sender,
		&recipientsJSON, &d.PageCount, &d.OCRQuality, &d.HasRedactions,
		&d.Completeness, &d.PrimarySource, &d.SelectionReason,
		&d.MergedInto, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan canonical")
	}

	if recipientsJSON != "" {
		if err := json.Unmarshal([]byte(recipientsJSON), &d.Recipients); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal recipients")
		}
	}
	return &d, nil
}

func sqliteListSources(ctx context.Context, q querier, canonicalID string) ([]model.Source, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE canonical_id = ? ORDER BY added_at, file_path`,
		canonicalID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list sources %s", canonicalID)
	}
	defer rows.Close()

	var sources []model.Source
	for rows.Next() {
		var src model.Source
		if err := rows.Scan(&src.ID, &src.CanonicalID, &src.SourceName, &src.Collection,
			&src.FilePath, &src.Format, &src.FileHash, &src.FileSize,
			&src.QualityScore, &src.DownloadDate, &src.AddedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan source")
		}
		sources = append(sources, src)
	}
	return sources, eris.Wrap(rows.Err(), "sqlite: list sources iterate")
}

func sqliteInsertSource(ctx context.Context, tx *sql.Tx, src *model.Source) (bool, error) {
	id := uuid.New().String()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO sources (id, canonical_id, source_name, collection, file_path, format, file_hash, file_size, quality_score, download_date, added_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (canonical_id, file_path) DO NOTHING`,
		id, src.CanonicalID, src.SourceName, src.Collection, src.FilePath, src.Format,
		src.FileHash, src.FileSize, src.QualityScore, src.DownloadDate, src.AddedAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert source %s", src.FilePath)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: insert source rows affected")
	}
	if n > 0 {
		src.ID = id
	}
	return n > 0, nil
}

func sqliteAppendLog(ctx context.Context, tx *sql.Tx, e *model.OperationLogEntry) error {
	e.ID = uuid.New().String()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	detailsJSON := []byte("{}")
	if len(e.Details) > 0 {
		var err error
		detailsJSON, err = json.Marshal(e.Details)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal operation details")
		}
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO operation_log (id, ts, operation, canonical_id, source, status, message, details)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timestamp, string(e.Operation), e.CanonicalID, e.Source,
		string(e.Status), e.Message, string(detailsJSON),
	)
	return eris.Wrap(err, "sqlite: append operation log")
}

// sqliteRecomputePrimary re-runs primary selection over the canonical's
// sources and persists the outcome when it changed.
func sqliteRecomputePrimary(ctx context.Context, tx *sql.Tx, doc *model.CanonicalDocument, now time.Time) (bool, string, error) {
	sources, err := sqliteListSources(ctx, tx, doc.CanonicalID)
	if err != nil {
		return false, doc.PrimarySource, err
	}
	winner := model.SelectPrimary(sources)
	if winner == nil || winner.FilePath == doc.PrimarySource {
		return false, doc.PrimarySource, nil
	}

	var displaced *model.Source
	for i := range sources {
		if sources[i].FilePath == doc.PrimarySource {
			displaced = &sources[i]
			break
		}
	}
	reason := selectionReason(winner, displaced)

	if _, err := tx.ExecContext(ctx,
		`UPDATE canonical_documents SET primary_source = ?, selection_reason = ?, ocr_quality = ?, updated_at = ?
		 WHERE canonical_id = ?`,
		winner.FilePath, reason, winner.QualityScore, now, doc.CanonicalID,
	); err != nil {
		return false, doc.PrimarySource, eris.Wrapf(err, "sqlite: update primary %s", doc.CanonicalID)
	}

	entry := &model.OperationLogEntry{
		Timestamp:   now,
		Operation:   model.OpReassignPrimary,
		CanonicalID: doc.CanonicalID,
		Source:      winner.FilePath,
		Status:      model.OpStatusOK,
		Message:     reason,
		Details: map[string]string{
			"previous": doc.PrimarySource,
			"new":      winner.FilePath,
		},
	}
	if err := sqliteAppendLog(ctx, tx, entry); err != nil {
		return false, doc.PrimarySource, err
	}
	return true, winner.FilePath, nil
}

func sortedPageNumbers(pages map[int]string) []int {
	nums := make([]int, 0, len(pages))
	for n := range pages {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

func isSQLiteUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
