// Package mapcache persists generated map data so chunks seen before are not
// regenerated after a restart.
package mapcache

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"endlessterrain.ai/internal/sim/terrain"
)

const maxBatch = 256

type SQLiteStore struct {
	db     *sql.DB
	logger *log.Logger

	enc *zstd.Encoder
	dec *zstd.Decoder

	ch   chan putReq
	wg   sync.WaitGroup
	once sync.Once

	// mu guards closed and the close of ch; readers and Put hold it shared.
	mu     sync.RWMutex
	closed bool

	hits        atomic.Uint64
	misses      atomic.Uint64
	readErrors  atomic.Uint64
	writes      atomic.Uint64
	writeErrors atomic.Uint64
	dropped     atomic.Uint64
}

type putReq struct {
	key  terrain.MapKey
	data *terrain.MapData
}

func OpenSQLite(path string, logger *log.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
		enc:    enc,
		dec:    dec,
		ch:     make(chan putReq, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS map_data (
			seed INTEGER NOT NULL,
			generator TEXT NOT NULL,
			cx INTEGER NOT NULL,
			cy INTEGER NOT NULL,
			size INTEGER NOT NULL,
			blob BLOB NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY (seed, generator, cx, cy)
		);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Get reads one chunk synchronously. A missing or undecodable row is a miss.
func (s *SQLiteStore) Get(key terrain.MapKey) (*terrain.MapData, bool, error) {
	if s == nil {
		return nil, false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, nil
	}
	var (
		size int
		blob []byte
	)
	err := s.db.QueryRow(
		`SELECT size, blob FROM map_data WHERE seed=? AND generator=? AND cx=? AND cy=?`,
		key.Seed, key.Generator, key.X, key.Y,
	).Scan(&size, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		s.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		s.readErrors.Add(1)
		return nil, false, err
	}
	raw, err := s.dec.DecodeAll(blob, nil)
	if err != nil {
		s.readErrors.Add(1)
		return nil, false, fmt.Errorf("decompress %d,%d: %w", key.X, key.Y, err)
	}
	d, err := decodeMapData(raw)
	if err != nil {
		s.readErrors.Add(1)
		return nil, false, fmt.Errorf("decode %d,%d: %w", key.X, key.Y, err)
	}
	if d.Size != size {
		s.readErrors.Add(1)
		return nil, false, fmt.Errorf("decode %d,%d: size %d, row says %d", key.X, key.Y, d.Size, size)
	}
	s.hits.Add(1)
	return d, true, nil
}

// Put queues a write. It never blocks: when the writer falls behind the entry
// is dropped and the chunk is simply regenerated next time.
func (s *SQLiteStore) Put(key terrain.MapKey, data *terrain.MapData) {
	if s == nil || data == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- putReq{key: key, data: data}:
	default:
		s.dropped.Add(1)
	}
}

func (s *SQLiteStore) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM map_data`).Scan(&n)
	return n, err
}

func (s *SQLiteStore) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		s.dec.Close()
		_ = s.enc.Close()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteStore) loop() {
	batch := make([]putReq, 0, maxBatch)
	for r := range s.ch {
		batch = append(batch[:0], r)
	fill:
		for len(batch) < maxBatch {
			select {
			case r2, ok := <-s.ch:
				if !ok {
					break fill
				}
				batch = append(batch, r2)
			default:
				break fill
			}
		}
		s.writeBatch(batch)
	}
}

func (s *SQLiteStore) writeBatch(batch []putReq) {
	tx, err := s.db.Begin()
	if err != nil {
		s.writeErrors.Add(uint64(len(batch)))
		s.logger.Printf("begin: %v", err)
		return
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO map_data(seed,generator,cx,cy,size,blob,created_at) VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		s.writeErrors.Add(uint64(len(batch)))
		s.logger.Printf("prepare: %v", err)
		return
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	n := 0
	for _, r := range batch {
		raw, err := encodeMapData(r.data)
		if err != nil {
			s.writeErrors.Add(1)
			s.logger.Printf("encode %d,%d: %v", r.key.X, r.key.Y, err)
			continue
		}
		blob := s.enc.EncodeAll(raw, nil)
		if _, err := stmt.Exec(r.key.Seed, r.key.Generator, r.key.X, r.key.Y, r.data.Size, blob, now); err != nil {
			s.writeErrors.Add(1)
			s.logger.Printf("insert %d,%d: %v", r.key.X, r.key.Y, err)
			continue
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		s.writeErrors.Add(uint64(n))
		s.logger.Printf("commit: %v", err)
		return
	}
	s.writes.Add(uint64(n))
}

type Stats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	ReadErrors    uint64 `json:"read_errors"`
	Writes        uint64 `json:"writes"`
	WriteErrors   uint64 `json:"write_errors"`
	DropTotal     uint64 `json:"drop_total"`
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
}

func (s *SQLiteStore) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		ReadErrors:    s.readErrors.Load(),
		Writes:        s.writes.Load(),
		WriteErrors:   s.writeErrors.Load(),
		DropTotal:     s.dropped.Load(),
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
	}
}
