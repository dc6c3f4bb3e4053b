package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"

	"endlessterrain.ai/internal/sim/world"
)

// TickLogger appends one JSON line per world tick to a zstd stream under
// <dir>/ticks-YYYY-MM-DD-HH.jsonl.zst, starting a new file each UTC hour. A
// restart appends a new zstd frame to the current hour's file.
type TickLogger struct {
	dir string
	// now is swapped in tests to force rotation.
	now func() time.Time

	mu   sync.Mutex
	hour string
	f    *os.File
	zw   *zstd.Encoder
	bw   *bufio.Writer
	enc  *json.Encoder

	entries  atomic.Uint64
	files    atomic.Uint64
	errors   atomic.Uint64
	lastTick atomic.Uint64
}

var _ world.TickLogger = (*TickLogger)(nil)

func NewTickLogger(dir string) *TickLogger {
	return &TickLogger{dir: dir, now: time.Now}
}

func (l *TickLogger) WriteTick(e world.TickLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writeLocked(e); err != nil {
		l.errors.Add(1)
		return err
	}
	l.entries.Add(1)
	l.lastTick.Store(e.Tick)
	return nil
}

func (l *TickLogger) writeLocked(e world.TickLogEntry) error {
	if hour := l.now().UTC().Format("2006-01-02-15"); hour != l.hour {
		if err := l.openLocked(hour); err != nil {
			return err
		}
	}
	// Encode appends the newline.
	if err := l.enc.Encode(e); err != nil {
		return err
	}
	return l.bw.Flush()
}

func (l *TickLogger) openLocked(hour string) error {
	if err := l.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(tickLogPath(l.dir, hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	l.f, l.zw, l.hour = f, zw, hour
	l.bw = bufio.NewWriterSize(zw, 64*1024)
	l.enc = json.NewEncoder(l.bw)
	l.files.Add(1)
	return nil
}

func (l *TickLogger) closeLocked() error {
	if l.f == nil {
		return nil
	}
	_ = l.bw.Flush()
	err := l.zw.Close()
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f, l.zw, l.bw, l.enc, l.hour = nil, nil, nil, nil, ""
	return err
}

func (l *TickLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

type TickLogStats struct {
	Entries  uint64 `json:"entries"`
	Files    uint64 `json:"files"`
	Errors   uint64 `json:"errors"`
	LastTick uint64 `json:"last_tick"`
}

func (l *TickLogger) Stats() TickLogStats {
	if l == nil {
		return TickLogStats{}
	}
	return TickLogStats{
		Entries:  l.entries.Load(),
		Files:    l.files.Load(),
		Errors:   l.errors.Load(),
		LastTick: l.lastTick.Load(),
	}
}

func tickLogPath(dir, hour string) string {
	return filepath.Join(dir, TickLogPrefix+"-"+hour+".jsonl.zst")
}
