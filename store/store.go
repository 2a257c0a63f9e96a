package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Document represents a row in the documents table.
type Document struct {
	ID          int64  `json:"id"`
	Path        string `json:"path"`
	Filename    string `json:"filename"`
	Format      string `json:"format"`
	ContentHash string `json:"content_hash"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Chunk represents a row in the chunks table.
type Chunk struct {
	ID            int64  `json:"id"`
	DocumentID    int64  `json:"document_id"`
	Content       string `json:"content"`
	Heading       string `json:"heading"`
	PageNumber    int    `json:"page_number"`
	PositionInDoc int    `json:"position_in_doc"`
	TokenCount    int    `json:"token_count"`
	ContentHash   string `json:"content_hash"`
}

// FactSource is one provenance entry backing a fact: the document it came
// from, the section or page, and the verbatim quote.
type FactSource struct {
	Document string `json:"document"`
	Section  string `json:"section"`
	Quote    string `json:"quote"`
}

// Fact is a stored triple with its accumulated provenance.
type Fact struct {
	ID          int64        `json:"id"`
	Subject     string       `json:"subject"`
	Relation    string       `json:"relation"`
	Object      string       `json:"object"`
	SubjectNorm string       `json:"subject_norm"`
	ObjectNorm  string       `json:"object_norm"`
	Sources     []FactSource `json:"sources"`
}

// ChunkHit holds a chunk returned by vector search with its document info.
type ChunkHit struct {
	ChunkID    int64   `json:"chunk_id"`
	DocumentID int64   `json:"document_id"`
	Content    string  `json:"content"`
	Heading    string  `json:"heading"`
	PageNumber int     `json:"page_number"`
	Filename   string  `json:"filename"`
	Score      float64 `json:"score"`
}

// VerdictLog represents a row in the verdict audit log.
type VerdictLog struct {
	Question      string      `json:"question"`
	Answer        string      `json:"answer"`
	Justification string      `json:"justification"`
	Evidence      interface{} `json:"evidence"`
	ModelUsed     string      `json:"model_used"`
	ElapsedMs     int64       `json:"elapsed_ms"`
}

// Store wraps the SQLite database for all provado persistence: the document
// registry, the vector index, and the fact store.
type Store struct {
	db           *sql.DB
	embeddingDim int
}

// New opens (or creates) a SQLite database at the given path and initialises
// the schema including the sqlite-vec virtual table.
func New(dbPath string, embeddingDim int) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	return &Store{db: db, embeddingDim: embeddingDim}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for diagnostic queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EmbeddingDim returns the configured embedding dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// --- Document operations ---

// UpsertDocument inserts or updates a document record. Returns the document ID.
// RETURNING resolves the row id on both insert and update paths;
// last_insert_rowid() is stale when the conflict takes the UPDATE branch.
func (s *Store) UpsertDocument(ctx context.Context, doc Document) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO documents (path, filename, format, content_hash, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			filename = excluded.filename,
			format = excluded.format,
			content_hash = excluded.content_hash,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`, doc.Path, doc.Filename, doc.Format, doc.ContentHash, doc.Status).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetDocumentByPath retrieves a document by its file path.
func (s *Store) GetDocumentByPath(ctx context.Context, path string) (*Document, error) {
	doc := &Document{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, path, filename, format, content_hash, status, created_at, updated_at
		FROM documents WHERE path = ?
	`, path).Scan(&doc.ID, &doc.Path, &doc.Filename, &doc.Format,
		&doc.ContentHash, &doc.Status, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(ctx context.Context, id int64) (*Document, error) {
	doc := &Document{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, path, filename, format, content_hash, status, created_at, updated_at
		FROM documents WHERE id = ?
	`, id).Scan(&doc.ID, &doc.Path, &doc.Filename, &doc.Format,
		&doc.ContentHash, &doc.Status, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns all documents ordered by creation time.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, filename, format, content_hash, status, created_at, updated_at
		FROM documents ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Path, &d.Filename, &d.Format,
			&d.ContentHash, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// UpdateDocumentStatus updates just the status field.
func (s *Store) UpdateDocumentStatus(ctx context.Context, id int64, status string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE documents SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		status, id)
	return err
}

// DeleteDocument removes a document, its chunks, and its embeddings.
// Facts are append-only and survive document deletion; use Reset for a
// clean rebuild.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM vec_chunks WHERE chunk_id IN (
				SELECT id FROM chunks WHERE document_id = ?
			)`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM chunks WHERE document_id = ?", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM documents WHERE id = ?", id); err != nil {
			return err
		}
		return nil
	})
}

// DeleteDocumentData removes chunks and embeddings for a document but keeps
// the document record itself (re-ingest path).
func (s *Store) DeleteDocumentData(ctx context.Context, docID int64) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM vec_chunks WHERE chunk_id IN (
				SELECT id FROM chunks WHERE document_id = ?
			)`, docID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE document_id = ?", docID)
		return err
	})
}

// Reset wipes all ingested data: documents, chunks, embeddings, facts, and
// provenance. Explicit invalidation for clean rebuilds after the source
// document set changes.
func (s *Store) Reset(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			"DELETE FROM fact_sources",
			"DELETE FROM facts",
			"DELETE FROM vec_chunks",
			"DELETE FROM chunks",
			"DELETE FROM documents",
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- Chunk operations ---

// InsertChunks inserts a batch of chunks and returns their IDs.
func (s *Store) InsertChunks(ctx context.Context, chunks []Chunk) ([]int64, error) {
	ids := make([]int64, len(chunks))

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (document_id, content, heading, page_number,
				position_in_doc, token_count, content_hash)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, c := range chunks {
			hash := sha256.Sum256([]byte(c.Content))
			res, err := stmt.ExecContext(ctx,
				c.DocumentID, c.Content, c.Heading, c.PageNumber,
				c.PositionInDoc, c.TokenCount, hex.EncodeToString(hash[:]))
			if err != nil {
				return err
			}
			ids[i], err = res.LastInsertId()
			if err != nil {
				return err
			}
		}
		return nil
	})

	return ids, err
}

// GetChunksByDocument returns all chunks for a given document.
func (s *Store) GetChunksByDocument(ctx context.Context, docID int64) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, content, heading, page_number, position_in_doc,
			token_count, content_hash
		FROM chunks WHERE document_id = ? ORDER BY position_in_doc
	`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Content, &c.Heading,
			&c.PageNumber, &c.PositionInDoc, &c.TokenCount, &c.ContentHash); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// ChunkContainsQuote reports whether any ingested chunk contains the given
// text verbatim. Diagnostic helper for provenance checks.
func (s *Store) ChunkContainsQuote(ctx context.Context, quote string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM chunks WHERE instr(content, ?) > 0", quote).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// --- Vector index operations ---

// InsertEmbedding stores a vector embedding for a chunk.
func (s *Store) InsertEmbedding(ctx context.Context, chunkID int64, embedding []float32) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)",
		chunkID, serializeFloat32(embedding))
	return err
}

// VectorSearch performs a KNN search returning the top-k nearest chunks.
func (s *Store) VectorSearch(ctx context.Context, queryEmbedding []float32, k int) ([]ChunkHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.chunk_id, v.distance,
			c.content, c.heading, c.page_number, c.document_id,
			d.filename
		FROM vec_chunks v
		JOIN chunks c ON c.id = v.chunk_id
		JOIN documents d ON d.id = c.document_id
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance
	`, serializeFloat32(queryEmbedding), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ChunkHit
	for rows.Next() {
		var r ChunkHit
		var distance float64
		if err := rows.Scan(&r.ChunkID, &distance,
			&r.Content, &r.Heading, &r.PageNumber, &r.DocumentID,
			&r.Filename); err != nil {
			return nil, err
		}
		// Convert distance to similarity score (1 - distance for cosine)
		r.Score = 1.0 - distance
		results = append(results, r)
	}
	return results, rows.Err()
}

// --- Fact operations ---

// UpsertFact inserts a fact if its normalized triple key is new, otherwise
// reuses the existing row, and appends the provenance entry either way.
// The whole operation runs in one transaction so concurrent extraction
// workers never observe a fact without provenance. Returns the fact ID and
// whether a new fact row was created.
func (s *Store) UpsertFact(ctx context.Context, f Fact, src FactSource) (int64, bool, error) {
	var id int64
	var created bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO facts (subject, relation, object, subject_norm, object_norm)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(subject_norm, relation, object_norm) DO NOTHING
		`, f.Subject, f.Relation, f.Object, f.SubjectNorm, f.ObjectNorm)
		if err != nil {
			return err
		}

		if n, _ := res.RowsAffected(); n > 0 {
			created = true
			id, err = res.LastInsertId()
			if err != nil {
				return err
			}
		} else {
			row := tx.QueryRowContext(ctx,
				"SELECT id FROM facts WHERE subject_norm = ? AND relation = ? AND object_norm = ?",
				f.SubjectNorm, f.Relation, f.ObjectNorm)
			if err := row.Scan(&id); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO fact_sources (fact_id, document, section, quote)
			VALUES (?, ?, ?, ?)
		`, id, src.Document, src.Section, src.Quote)
		return err
	})
	return id, created, err
}

// SearchFacts finds facts whose normalized subject or object contains any of
// the given terms as a case-insensitive substring, with provenance attached.
// Terms shorter than minTermLen are skipped to avoid noise.
func (s *Store) SearchFacts(ctx context.Context, terms []string, limit int) ([]Fact, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	if limit == 0 {
		limit = 50
	}

	const minTermLen = 3

	var conditions []string
	var args []interface{}
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if len(t) < minTermLen {
			continue
		}
		conditions = append(conditions, "(subject_norm LIKE ? OR object_norm LIKE ?)")
		args = append(args, "%"+t+"%", "%"+t+"%")
	}
	if len(conditions) == 0 {
		return nil, nil
	}

	// ORDER BY keeps which rows survive the cap deterministic.
	query := "SELECT id, subject, relation, object, subject_norm, object_norm FROM facts WHERE " +
		strings.Join(conditions, " OR ") + " ORDER BY id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var f Fact
		if err := rows.Scan(&f.ID, &f.Subject, &f.Relation, &f.Object,
			&f.SubjectNorm, &f.ObjectNorm); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range facts {
		sources, err := s.factSources(ctx, facts[i].ID)
		if err != nil {
			return nil, err
		}
		facts[i].Sources = sources
	}
	return facts, nil
}

// GetFact returns a single fact with provenance by ID.
func (s *Store) GetFact(ctx context.Context, id int64) (*Fact, error) {
	f := &Fact{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, subject, relation, object, subject_norm, object_norm FROM facts WHERE id = ?",
		id).Scan(&f.ID, &f.Subject, &f.Relation, &f.Object, &f.SubjectNorm, &f.ObjectNorm)
	if err != nil {
		return nil, err
	}
	f.Sources, err = s.factSources(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// AllFacts returns every fact with provenance. Diagnostic helper.
func (s *Store) AllFacts(ctx context.Context) ([]Fact, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, subject, relation, object, subject_norm, object_norm FROM facts")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var f Fact
		if err := rows.Scan(&f.ID, &f.Subject, &f.Relation, &f.Object,
			&f.SubjectNorm, &f.ObjectNorm); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range facts {
		facts[i].Sources, err = s.factSources(ctx, facts[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return facts, nil
}

func (s *Store) factSources(ctx context.Context, factID int64) ([]FactSource, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT document, COALESCE(section, ''), quote FROM fact_sources WHERE fact_id = ? ORDER BY id",
		factID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []FactSource
	for rows.Next() {
		var fs FactSource
		if err := rows.Scan(&fs.Document, &fs.Section, &fs.Quote); err != nil {
			return nil, err
		}
		sources = append(sources, fs)
	}
	return sources, rows.Err()
}

// --- Verdict log ---

// LogVerdict writes an entry to the verdict audit log.
func (s *Store) LogVerdict(ctx context.Context, v VerdictLog) error {
	evidenceJSON, _ := json.Marshal(v.Evidence)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verdict_log (question, answer, justification, evidence, model_used, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`, v.Question, v.Answer, v.Justification, string(evidenceJSON), v.ModelUsed, v.ElapsedMs)
	return err
}

// --- Diagnostics ---

// DBStats holds counts of key database objects.
type DBStats struct {
	Documents  int `json:"documents"`
	Chunks     int `json:"chunks"`
	Embeddings int `json:"embeddings"`
	Facts      int `json:"facts"`
	Sources    int `json:"sources"`
}

// Stats returns counts of documents, chunks, embeddings, facts, and sources.
func (s *Store) Stats(ctx context.Context) (*DBStats, error) {
	stats := &DBStats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM documents", &stats.Documents},
		{"SELECT COUNT(*) FROM chunks", &stats.Chunks},
		{"SELECT COUNT(*) FROM vec_chunks", &stats.Embeddings},
		{"SELECT COUNT(*) FROM facts", &stats.Facts},
		{"SELECT COUNT(*) FROM fact_sources", &stats.Sources},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}
	return stats, nil
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// serializeFloat32 converts a float32 slice to little-endian bytes for sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
