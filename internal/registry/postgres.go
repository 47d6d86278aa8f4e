package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/bobmatnyc/dedup-cli/internal/db"
	"github.com/bobmatnyc/dedup-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var (
	pgFindByContentHash = `SELECT ` + canonicalColumns + ` FROM canonical_documents WHERE content_hash = $1`
	pgGetCanonical      = `SELECT ` + canonicalColumns + ` FROM canonical_documents WHERE canonical_id = $1`
	pgInsertSource      = `INSERT INTO sources (id, canonical_id, source_name, collection, file_path, format, file_hash, file_size, quality_score, download_date, added_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (canonical_id, file_path) DO NOTHING`
	pgAppendLog = `INSERT INTO operation_log (id, ts, operation, canonical_id, source, status, message, details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
)

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot registry operations.
var preparedStatements = map[string]string{
	"find_by_content_hash": pgFindByContentHash,
	"get_canonical":        pgGetCanonical,
	"insert_source":        pgInsertSource,
	"append_operation_log": pgAppendLog,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., bulk fingerprint loads).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) FindByContentHash(ctx context.Context, contentHash string) (*model.CanonicalDocument, error) {
	return pgxScanCanonical(s.pool.QueryRow(ctx, pgFindByContentHash, contentHash))
}

func (s *PostgresStore) GetCanonical(ctx context.Context, canonicalID string) (*model.CanonicalDocument, error) {
	return pgxScanCanonical(s.pool.QueryRow(ctx, pgGetCanonical, canonicalID))
}

// InsertCanonical creates a canonical document together with its first
// source and the create log entry in one transaction. The document's primary
// source fields are derived from src. Returns ErrContentHashExists when the
// content hash is already registered.
func (s *PostgresStore) InsertCanonical(ctx context.Context, doc *model.CanonicalDocument, src *model.Source) error {
	if doc == nil || src == nil {
		return eris.New("postgres: insert canonical: nil document or source")
	}
	if doc.CanonicalID == "" || doc.ContentHash == "" {
		return eris.New("postgres: insert canonical: missing canonical id or content hash")
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
		return eris.Wrap(err, "postgres: marshal recipients")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin insert canonical")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO canonical_documents (`+canonicalColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		doc.CanonicalID, doc.ContentHash, doc.FileHash, doc.SimHash,
		doc.DocumentType, doc.Title, doc.Date, doc.Subject, doc.Sender,
		recipientsJSON, doc.PageCount, doc.OCRQuality, doc.HasRedactions,
		string(doc.Completeness), doc.PrimarySource, doc.SelectionReason,
		doc.MergedInto, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrContentHashExists
		}
		return eris.Wrapf(err, "postgres: insert canonical %s", doc.CanonicalID)
	}

	if _, err := pgxInsertSource(ctx, tx, src); err != nil {
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
	if err := pgxAppendLog(ctx, tx, entry); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit insert canonical")
}

// AttachSource adds src to an existing canonical document and recomputes the
// primary source. Attaching the same file path twice is a no-op. The
// canonical row is locked for the duration of the transaction.
func (s *PostgresStore) AttachSource(ctx context.Context, canonicalID string, src *model.Source) (*AttachResult, error) {
	if src == nil {
		return nil, eris.New("postgres: attach source: nil source")
	}

	now := time.Now().UTC()
	src.CanonicalID = canonicalID
	src.AddedAt = now

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin attach source")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	doc, err := pgxScanCanonical(tx.QueryRow(ctx,
		`SELECT `+canonicalColumns+` FROM canonical_documents WHERE canonical_id = $1 FOR UPDATE`,
		canonicalID,
	))
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, eris.Errorf("postgres: canonical not found: %s", canonicalID)
	}
	if doc.Retired() {
		return nil, eris.Errorf("postgres: canonical %s retired into %s", canonicalID, doc.MergedInto)
	}

	attached, err := pgxInsertSource(ctx, tx, src)
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
		if err := pgxAppendLog(ctx, tx, entry); err != nil {
			return nil, err
		}
	}

	reassigned, primary, err := pgxRecomputePrimary(ctx, tx, doc, now)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit attach source")
	}
	return &AttachResult{Attached: attached, Reassigned: reassigned, PrimarySource: primary}, nil
}

func (s *PostgresStore) ListSources(ctx context.Context, canonicalID string) ([]model.Source, error) {
	return pgxListSources(ctx, s.pool, canonicalID)
}

func (s *PostgresStore) ResolveSourcePath(ctx context.Context, filePath string) (*model.CanonicalDocument, error) {
	return pgxScanCanonical(s.pool.QueryRow(ctx,
		`SELECT `+canonicalColumns+` FROM canonical_documents
		 WHERE canonical_id = (SELECT canonical_id FROM sources WHERE file_path = $1 ORDER BY added_at DESC LIMIT 1)`,
		filePath,
	))
}

func (s *PostgresStore) ListCanonical(ctx context.Context, filter Filter) ([]model.CanonicalDocument, error) {
	query := `SELECT ` + canonicalColumns + ` FROM canonical_documents WHERE true`
	args := []any{}
	argIdx := 1

	if !filter.IncludeRetired {
		query += ` AND merged_into = ''`
	}
	if filter.DocumentType != "" {
		query += fmt.Sprintf(` AND document_type = $%d`, argIdx)
		args = append(args, filter.DocumentType)
		argIdx++
	}
	if filter.Collection != "" {
		query += fmt.Sprintf(` AND canonical_id IN (SELECT canonical_id FROM sources WHERE collection = $%d)`, argIdx)
		args = append(args, filter.Collection)
		argIdx++
	}
	query += ` ORDER BY canonical_id`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
		argIdx++
		if filter.Offset > 0 {
			query += fmt.Sprintf(` OFFSET $%d`, argIdx)
			args = append(args, filter.Offset)
			argIdx++
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list canonical")
	}
	defer rows.Close()

	var docs []model.CanonicalDocument
	for rows.Next() {
		d, err := pgxScanCanonical(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *d)
	}
	return docs, eris.Wrap(rows.Err(), "postgres: list canonical iterate")
}

// MergeCanonical retires fromID in favor of toID. Sources are re-parented to
// the surviving document and its primary source is recomputed.
func (s *PostgresStore) MergeCanonical(ctx context.Context, fromID, toID, reason string) error {
	if fromID == toID {
		return eris.New("postgres: merge: identical canonical ids")
	}

	now := time.Now().UTC()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin merge")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	from, err := pgxScanCanonical(tx.QueryRow(ctx,
		`SELECT `+canonicalColumns+` FROM canonical_documents WHERE canonical_id = $1 FOR UPDATE`, fromID))
	if err != nil {
		return err
	}
	if from == nil {
		return eris.Errorf("postgres: canonical not found: %s", fromID)
	}
	if from.Retired() {
		return eris.Errorf("postgres: canonical %s already retired into %s", fromID, from.MergedInto)
	}

	to, err := pgxScanCanonical(tx.QueryRow(ctx,
		`SELECT `+canonicalColumns+` FROM canonical_documents WHERE canonical_id = $1 FOR UPDATE`, toID))
	if err != nil {
		return err
	}
	if to == nil {
		return eris.Errorf("postgres: canonical not found: %s", toID)
	}
	if to.Retired() {
		return eris.Errorf("postgres: canonical %s already retired into %s", toID, to.MergedInto)
	}

	// Drop movers whose file path already exists under the survivor, then
	// re-parent the rest so their provenance rows survive intact.
	if _, err := tx.Exec(ctx,
		`DELETE FROM sources WHERE canonical_id = $1
		 AND file_path IN (SELECT file_path FROM sources WHERE canonical_id = $2)`,
		fromID, toID,
	); err != nil {
		return eris.Wrapf(err, "postgres: merge dedupe sources %s", fromID)
	}
	tag, err := tx.Exec(ctx,
		`UPDATE sources SET canonical_id = $1 WHERE canonical_id = $2`, toID, fromID)
	if err != nil {
		return eris.Wrapf(err, "postgres: merge move sources %s", fromID)
	}
	moved := tag.RowsAffected()

	if _, err := tx.Exec(ctx,
		`UPDATE canonical_documents SET merged_into = $1, updated_at = $2 WHERE canonical_id = $3`,
		toID, now, fromID,
	); err != nil {
		return eris.Wrapf(err, "postgres: retire canonical %s", fromID)
	}

	if _, _, err := pgxRecomputePrimary(ctx, tx, to, now); err != nil {
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
	if err := pgxAppendLog(ctx, tx, entry); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit merge")
}

// SavePageHashes replaces the stored page fingerprints for a canonical
// document, bulk-loading them over the COPY protocol.
func (s *PostgresStore) SavePageHashes(ctx context.Context, canonicalID string, pages map[int]string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save page hashes")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`DELETE FROM document_pages WHERE canonical_id = $1`, canonicalID); err != nil {
		return eris.Wrapf(err, "postgres: clear page hashes %s", canonicalID)
	}

	rows := make([][]any, 0, len(pages))
	for _, page := range sortedPageNumbers(pages) {
		rows = append(rows, []any{canonicalID, page, pages[page]})
	}
	if _, err := db.CopyFrom(ctx, tx, "document_pages",
		[]string{"canonical_id", "page_number", "page_hash"}, rows); err != nil {
		return eris.Wrapf(err, "postgres: copy page hashes %s", canonicalID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit save page hashes")
}

func (s *PostgresStore) PageHashes(ctx context.Context, canonicalID string) (map[int]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT page_number, page_hash FROM document_pages WHERE canonical_id = $1 ORDER BY page_number`,
		canonicalID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: page hashes %s", canonicalID)
	}
	defer rows.Close()

	pages := map[int]string{}
	for rows.Next() {
		var page int
		var hash string
		if err := rows.Scan(&page, &hash); err != nil {
			return nil, eris.Wrap(err, "postgres: scan page hash")
		}
		pages[page] = hash
	}
	return pages, eris.Wrap(rows.Err(), "postgres: page hashes iterate")
}

func (s *PostgresStore) Log(ctx context.Context, entry *model.OperationLogEntry) error {
	return pgxAppendLog(ctx, s.pool, entry)
}

func (s *PostgresStore) ListOperations(ctx context.Context, filter OpFilter) ([]model.OperationLogEntry, error) {
	query := `SELECT ` + oplogColumns + ` FROM operation_log WHERE true`
	args := []any{}
	argIdx := 1

	if filter.CanonicalID != "" {
		query += fmt.Sprintf(` AND canonical_id = $%d`, argIdx)
		args = append(args, filter.CanonicalID)
		argIdx++
	}
	if filter.Operation != "" {
		query += fmt.Sprintf(` AND operation = $%d`, argIdx)
		args = append(args, string(filter.Operation))
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(` AND ts >= $%d`, argIdx)
		args = append(args, filter.Since.UTC())
		argIdx++
	}
	query += ` ORDER BY ts DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list operations")
	}
	defer rows.Close()

	var entries []model.OperationLogEntry
	for rows.Next() {
		var e model.OperationLogEntry
		var detailsJSON []byte
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Operation, &e.CanonicalID,
			&e.Source, &e.Status, &e.Message, &detailsJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan operation")
		}
		if len(detailsJSON) > 0 && string(detailsJSON) != "{}" {
			if err := json.Unmarshal(detailsJSON, &e.Details); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal operation details")
			}
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list operations iterate")
}

func (s *PostgresStore) Stats(ctx context.Context) (*model.RegistryStats, error) {
	var st model.RegistryStats
	err := s.pool.QueryRow(ctx, `SELECT
		(SELECT COUNT(*) FROM canonical_documents WHERE merged_into = ''),
		(SELECT COUNT(*) FROM canonical_documents WHERE merged_into <> ''),
		(SELECT COUNT(*) FROM sources),
		(SELECT COUNT(*) FROM operation_log),
		(SELECT COUNT(*) FROM operation_log WHERE status = 'flagged'),
		(SELECT COUNT(DISTINCT collection) FROM sources WHERE collection <> '')`,
	).Scan(&st.CanonicalDocuments, &st.RetiredDocuments, &st.Sources,
		&st.Operations, &st.FlaggedConflicts, &st.Collections)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}

	err = s.pool.QueryRow(ctx,
		`SELECT ts FROM operation_log ORDER BY ts DESC LIMIT 1`,
	).Scan(&st.LastOperationAt)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrap(err, "postgres: stats last operation")
	}
	return &st, nil
}

// helpers

func pgxScanCanonical(row pgx.Row) (*model.CanonicalDocument, error) {
	var d model.CanonicalDocument
	var recipientsJSON []byte

	err := row.Scan(&d.CanonicalID, &d.ContentHash, &d.FileHash, &d.SimHash,
		&d.DocumentType, &d.Title, &d.Date, &d.Subject, &d.Sender,
		&recipientsJSON, &d.PageCount, &d.OCRQuality, &d.HasRedactions,
		&d.Completeness, &d.PrimarySource, &d.SelectionReason,
		&d.MergedInto, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan canonical")
	}

	if len(recipientsJSON) > 0 {
		if err := json.Unmarshal(recipientsJSON, &d.Recipients); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal recipients")
		}
	}
	return &d, nil
}

func pgxListSources(ctx context.Context, q db.Pool, canonicalID string) ([]model.Source, error) {
	rows, err := q.Query(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE canonical_id = $1 ORDER BY added_at, file_path`,
		canonicalID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list sources %s", canonicalID)
	}
	defer rows.Close()

	var sources []model.Source
	for rows.Next() {
		var src model.Source
		if err := rows.Scan(&src.ID, &src.CanonicalID, &src.SourceName, &src.Collection,
			&src.FilePath, &src.Format, &src.FileHash, &src.FileSize,
			&src.QualityScore, &src.DownloadDate, &src.AddedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan source")
		}
		sources = append(sources, src)
	}
	return sources, eris.Wrap(rows.Err(), "postgres: list sources iterate")
}

func pgxInsertSource(ctx context.Context, q db.Pool, src *model.Source) (bool, error) {
	id := uuid.New().String()
	tag, err := q.Exec(ctx, pgInsertSource,
		id, src.CanonicalID, src.SourceName, src.Collection, src.FilePath, src.Format,
		src.FileHash, src.FileSize, src.QualityScore, src.DownloadDate, src.AddedAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert source %s", src.FilePath)
	}
	attached := tag.RowsAffected() > 0
	if attached {
		src.ID = id
	}
	return attached, nil
}

func pgxAppendLog(ctx context.Context, q db.Pool, e *model.OperationLogEntry) error {
	e.ID = uuid.New().String()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	detailsJSON := []byte("{}")
	if len(e.Details) > 0 {
		var err error
		detailsJSON, err = json.Marshal(e.Details)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal operation details")
		}
	}

	_, err := q.Exec(ctx, pgAppendLog,
		e.ID, e.Timestamp, string(e.Operation), e.CanonicalID, e.Source,
		string(e.Status), e.Message, detailsJSON,
	)
	return eris.Wrap(err, "postgres: append operation log")
}

// pgxRecomputePrimary re-runs primary selection over the canonical's sources
// and persists the outcome when it changed.
func pgxRecomputePrimary(ctx context.Context, q db.Pool, doc *model.CanonicalDocument, now time.Time) (bool, string, error) {
	sources, err := pgxListSources(ctx, q, doc.CanonicalID)
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

	if _, err := q.Exec(ctx,
		`UPDATE canonical_documents SET primary_source = $1, selection_reason = $2, ocr_quality = $3, updated_at = $4
		 WHERE canonical_id = $5`,
		winner.FilePath, reason, winner.QualityScore, now, doc.CanonicalID,
	); err != nil {
		return false, doc.PrimarySource, eris.Wrapf(err, "postgres: update primary %s", doc.CanonicalID)
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
	if err := pgxAppendLog(ctx, q, entry); err != nil {
		return false, doc.PrimarySource, err
	}
	return true, winner.FilePath, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
