// Package store implements the durable metadata store (C4), the dense
// vector index (C5), and the sparse BM25 index (C6).
package store

import (
	"database/sql"
	"sort"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hermes-search/hermes/internal/chunk"
	"github.com/hermes-search/hermes/internal/herrors"
)

// ChunkRecord is a persisted Chunk plus its assigned chunk_id.
type ChunkRecord struct {
	ChunkID int64
	chunk.Chunk
}

// MetadataStore is the durable, chunk_id-keyed record store. It is safe
// for concurrent reads; InsertChunks is not expected to run concurrently
// with other writers.
type MetadataStore struct {
	db *sql.DB
}

// OpenMetadataStore opens (creating if absent) a SQLite-backed metadata
// store at path, matching the schema in
// original_source/src/hermes/index/metadata_store.py.
func OpenMetadataStore(path string) (*MetadataStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, herrors.IoError(err, "opening metadata store %q", path)
	}
	if err := db.Ping(); err != nil {
		return nil, herrors.IoError(err, "opening metadata store %q", path)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	chunk_id INTEGER PRIMARY KEY AUTOINCREMENT,
	file_path TEXT NOT NULL,
	language TEXT NOT NULL,
	start_line INTEGER NOT NULL,
	end_line INTEGER NOT NULL,
	code_text TEXT NOT NULL,
	symbol_name TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_chunks_file_path ON chunks(file_path);
CREATE INDEX IF NOT EXISTS idx_chunks_language ON chunks(language);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, herrors.IoError(err, "creating metadata schema")
	}

	return &MetadataStore{db: db}, nil
}

// InsertChunks inserts chunks atomically in a single transaction and
// returns their assigned, monotonically increasing chunk_ids in the same
// order as the input.
func (s *MetadataStore) InsertChunks(chunks []chunk.Chunk) ([]int64, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, herrors.IoError(err, "beginning metadata transaction")
	}

	stmt, err := tx.Prepare(`INSERT INTO chunks (file_path, language, start_line, end_line, code_text, symbol_name) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return nil, herrors.IoError(err, "preparing insert statement")
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(chunks))
	for _, c := range chunks {
		res, err := stmt.Exec(c.FilePath, c.Language, c.StartLine, c.EndLine, c.CodeText, c.SymbolName)
		if err != nil {
			tx.Rollback()
			return nil, herrors.IoError(err, "inserting chunk")
		}
		id, err := res.LastInsertId()
		if err != nil {
			tx.Rollback()
			return nil, herrors.IoError(err, "reading inserted chunk id")
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, herrors.IoError(err, "committing metadata transaction")
	}
	return ids, nil
}

// GetChunk returns the record for id, or (zero, false) if absent.
func (s *MetadataStore) GetChunk(id int64) (ChunkRecord, bool) {
	row := s.db.QueryRow(`SELECT chunk_id, file_path, language, start_line, end_line, code_text, symbol_name FROM chunks WHERE chunk_id = ?`, id)
	var rec ChunkRecord
	if err := row.Scan(&rec.ChunkID, &rec.FilePath, &rec.Language, &rec.StartLine, &rec.EndLine, &rec.CodeText, &rec.SymbolName); err != nil {
		return ChunkRecord{}, false
	}
	return rec, true
}

// GetChunksByIDs returns records for ids, in the same order as ids,
// skipping any id not present.
func (s *MetadataStore) GetChunksByIDs(ids []int64) ([]ChunkRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]byte, 0, len(ids)*2)
	args := make([]any, len(ids))
	for i, id := range ids {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
		args[i] = id
	}

	query := `SELECT chunk_id, file_path, language, start_line, end_line, code_text, symbol_name FROM chunks WHERE chunk_id IN (` + string(placeholders) + `)`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, herrors.IoError(err, "querying chunks by id")
	}
	defer rows.Close()

	byID := make(map[int64]ChunkRecord, len(ids))
	for rows.Next() {
		var rec ChunkRecord
		if err := rows.Scan(&rec.ChunkID, &rec.FilePath, &rec.Language, &rec.StartLine, &rec.EndLine, &rec.CodeText, &rec.SymbolName); err != nil {
			return nil, herrors.IoError(err, "scanning chunk row")
		}
		byID[rec.ChunkID] = rec
	}

	out := make([]ChunkRecord, 0, len(ids))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// AllChunkIDs returns every chunk_id in ascending order; this sequence
// defines RowMapping.
func (s *MetadataStore) AllChunkIDs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT chunk_id FROM chunks ORDER BY chunk_id ASC`)
	if err != nil {
		return nil, herrors.IoError(err, "listing chunk ids")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, herrors.IoError(err, "scanning chunk id")
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// AllTexts returns code_text in ascending chunk_id order.
func (s *MetadataStore) AllTexts() ([]string, error) {
	rows, err := s.db.Query(`SELECT code_text FROM chunks ORDER BY chunk_id ASC`)
	if err != nil {
		return nil, herrors.IoError(err, "listing chunk texts")
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, herrors.IoError(err, "scanning chunk text")
		}
		texts = append(texts, text)
	}
	return texts, nil
}

// Count returns the total number of records.
func (s *MetadataStore) Count() (int, error) {
	row := s.db.QueryRow(`SELECT COUNT(*) FROM chunks`)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, herrors.IoError(err, "counting chunks")
	}
	return n, nil
}

// Close releases the underlying database handle. Idempotent.
func (s *MetadataStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
