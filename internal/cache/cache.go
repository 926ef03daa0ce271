// Package cache implements the incremental-build cache described in
// SPEC_FULL.md §2.1: a persisted, content-hash-keyed record of previous
// generator invocations so that re-running the generator on unchanged
// inputs can skip emission entirely. Grounded on the teacher's
// internal/build/builder.go content-hashing (crypto/sha256 over source
// bytes, a manifest comparison before rebuilding), generalized here from a
// one-shot in-memory compare into a `database/sql` + `modernc.org/sqlite`
// store so the comparison survives across process invocations.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store is a handle on the on-disk cache database.
type Store struct {
	db *sql.DB
}

// FileName is the cache database's fixed name within an output directory.
const FileName = ".decodergen-cache.sqlite"

// Open opens (creating if necessary) the cache database under outputDir.
func Open(outputDir string) (*Store, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir %q: %w", outputDir, err)
	}
	path := filepath.Join(outputDir, FileName)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache %q: %w", path, err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS builds (
			isa_name      TEXT NOT NULL,
			prefix        TEXT NOT NULL,
			input_digest  TEXT NOT NULL,
			output_digest TEXT NOT NULL,
			opcode_count  INTEGER NOT NULL,
			build_id      TEXT NOT NULL,
			generated_at  TEXT NOT NULL,
			PRIMARY KEY (isa_name, prefix)
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating builds table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Row is one recorded build.
type Row struct {
	ISAName      string
	Prefix       string
	InputDigest  string
	OutputDigest string
	OpcodeCount  int
	BuildID      string
	GeneratedAt  string
}

// Lookup returns the stored row for (isaName, prefix), if any.
func (s *Store) Lookup(isaName, prefix string) (Row, bool, error) {
	var r Row
	err := s.db.QueryRow(
		`SELECT isa_name, prefix, input_digest, output_digest, opcode_count, build_id, generated_at
		 FROM builds WHERE isa_name = ? AND prefix = ?`, isaName, prefix,
	).Scan(&r.ISAName, &r.Prefix, &r.InputDigest, &r.OutputDigest, &r.OpcodeCount, &r.BuildID, &r.GeneratedAt)
	if err == sql.ErrNoRows {
		return Row{}, false, nil
	}
	if err != nil {
		return Row{}, false, fmt.Errorf("querying cache: %w", err)
	}
	return r, true, nil
}

// Record upserts the row for (row.ISAName, row.Prefix).
func (s *Store) Record(row Row) error {
	_, err := s.db.Exec(`
		INSERT INTO builds (isa_name, prefix, input_digest, output_digest, opcode_count, build_id, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(isa_name, prefix) DO UPDATE SET
			input_digest = excluded.input_digest,
			output_digest = excluded.output_digest,
			opcode_count = excluded.opcode_count,
			build_id = excluded.build_id,
			generated_at = excluded.generated_at`,
		row.ISAName, row.Prefix, row.InputDigest, row.OutputDigest, row.OpcodeCount, row.BuildID, row.GeneratedAt)
	if err != nil {
		return fmt.Errorf("recording cache row: %w", err)
	}
	return nil
}

// DigestFiles hashes every element of contents, in the order given and each
// followed by a zero byte, into one hex-encoded sha256 digest — used both for
// the input digest (every input file named on the command line) and the output
// digest (every emitted file, in a fixed order) per SPEC_FULL.md §2.1.
func DigestFiles(contents [][]byte) string {
	h := sha256.New()
	for _, c := range contents {
		h.Write(c)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DigestOutputFiles reads every path and digests its contents the same way
// DigestFiles does, returning ok=false if any file is missing or unreadable
// (meaning the cached output can no longer be trusted).
func DigestOutputFiles(paths []string) (digest string, ok bool) {
	contents := make([][]byte, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return "", false
		}
		contents = append(contents, data)
	}
	return DigestFiles(contents), true
}

// UpToDate reports whether a previous build's recorded digests still match
// inputDigest and the live contents of outputPaths — if so, emission can be
// skipped entirely (SPEC_FULL.md §2.1: "a generator-side optimization only").
func UpToDate(row Row, inputDigest string, outputPaths []string) bool {
	if row.InputDigest != inputDigest {
		return false
	}
	liveOutputDigest, ok := DigestOutputFiles(outputPaths)
	if !ok {
		return false
	}
	return liveOutputDigest == row.OutputDigest
}
