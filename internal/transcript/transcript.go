// Package transcript records every processed chat message to rotating JSONL
// files, one JSON object per line. Closed files are handed to the uploader
// through a channel.
package transcript

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/fjudin/chatvoice/internal/message"
)

// Entry is one transcript line.
type Entry struct {
	Time     time.Time        `json:"time"`
	Platform message.Platform `json:"platform"`
	Author   string           `json:"author"`
	Text     string           `json:"text"`
	// Status is "spoken" or the filter reason that rejected the message.
	Status string `json:"status"`
}

const (
	StatusSpoken = "spoken"
)

// Recorder appends entries to the current file and rotates it on a timer.
// Rotated file paths are sent on Files; the receiver owns them afterwards.
type Recorder struct {
	dir        string
	rotateEver time.Duration
	log        *log.Logger

	mu       sync.Mutex
	file     *os.File
	enc      *json.Encoder
	openedAt time.Time
	seq      int
	closed   bool

	files chan string
}

// NewRecorder creates dir if needed. rotateEvery <= 0 disables rotation, so
// one file holds the whole session.
func NewRecorder(dir string, rotateEvery time.Duration) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}
	r := &Recorder{
		dir:        dir,
		rotateEver: rotateEvery,
		log:        log.With("component", "transcript"),
		files:      make(chan string, 16),
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

// Files delivers each rotated file path exactly once.
func (r *Recorder) Files() <-chan string {
	return r.files
}

// Record appends one entry, rotating first if the current file is old
// enough. Write failures are logged and dropped; losing a transcript line
// must not stall the pipeline.
func (r *Recorder) Record(e Entry) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	if r.rotateEver > 0 && time.Since(r.openedAt) >= r.rotateEver {
		if err := r.rotateLocked(); err != nil {
			r.log.Error("transcript rotation failed", "err", err)
		}
	}

	if err := r.enc.Encode(e); err != nil {
		r.log.Error("transcript write failed", "err", err)
	}
}

// Close flushes and hands off the final file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	err := r.closeCurrentLocked()
	close(r.files)
	return err
}

func (r *Recorder) open() error {
	r.seq++
	name := fmt.Sprintf("transcript-%s-%03d.jsonl", time.Now().UTC().Format("20060102-150405"), r.seq)
	f, err := os.OpenFile(filepath.Join(r.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	r.file = f
	r.enc = json.NewEncoder(f)
	r.openedAt = time.Now()
	return nil
}

func (r *Recorder) rotateLocked() error {
	if err := r.closeCurrentLocked(); err != nil {
		return err
	}
	return r.open()
}

func (r *Recorder) closeCurrentLocked() error {
	if r.file == nil {
		return nil
	}
	path := r.file.Name()
	err := r.file.Close()
	r.file = nil

	select {
	case r.files <- path:
	default:
		r.log.Warn("upload queue full, transcript left on disk", "path", path)
	}
	return err
}
