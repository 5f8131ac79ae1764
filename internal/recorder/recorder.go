// Package recorder persists one agent session as an append-only
// line-delimited JSON file, and reads prior recordings back for playback.
//
// Recording names encode their origin: {prefix}.{guid}.recording.jsonl,
// where the prefix starts with the originating game id and the guid is a
// fresh identifier per recording. I/O failures propagate: a partial or
// corrupt session log breaks the reproducibility guarantee this package
// exists to provide, so nothing is retried or dropped silently.
package recorder

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Suffix terminates every recording filename.
const Suffix = ".recording.jsonl"

// Entry is one recorded line. Data carries the original record; entries
// without a data payload are malformed and skipped on read.
type Entry struct {
	Data map[string]any `json:"data"`
}

type Recorder struct {
	dir  string
	name string

	mu sync.Mutex
	f  *os.File
}

// New opens a recording for appending. An empty guid starts a fresh
// recording under a generated identifier; a non-empty guid reopens the
// existing recording of that name (used by playback to read it back).
func New(dir, prefix, guid string) (*Recorder, error) {
	if guid == "" {
		guid = uuid.NewString()
	}
	name := prefix + "." + guid + Suffix

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create recordings dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}

	return &Recorder{dir: dir, name: name, f: f}, nil
}

func (r *Recorder) Name() string {
	return r.name
}

func (r *Recorder) Path() string {
	return filepath.Join(r.dir, r.name)
}

// Record appends one entry, wrapped as {"data": entry}. Prior entries are
// never rewritten.
func (r *Recorder) Record(entry any) error {
	line, err := json.Marshal(map[string]any{"data": entry})
	if err != nil {
		return fmt.Errorf("marshal recording entry: %w", err)
	}
	line = append(line, '\n')

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.f.Write(line); err != nil {
		return fmt.Errorf("append to %s: %w", r.name, err)
	}
	return nil
}

// Get reads back the full ordered entry sequence of this recording.
func (r *Recorder) Get() ([]Entry, error) {
	return Read(r.dir, r.name)
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}

// Read returns the ordered entries of a named recording.
func Read(dir, name string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), 16<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, fmt.Errorf("decode %s line %d: %w", name, len(entries)+1, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read recording: %w", err)
	}
	return entries, nil
}

// List enumerates the recording names available under dir, sorted.
func List(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read recordings dir: %w", err)
	}

	var names []string
	for _, f := range files {
		if f.IsDir() || !IsRecording(f.Name()) {
			continue
		}
		names = append(names, f.Name())
	}
	sort.Strings(names)
	return names, nil
}

// IsRecording reports whether name looks like a recording filename.
func IsRecording(name string) bool {
	return strings.HasSuffix(name, Suffix)
}

// Prefix recovers the full prefix of a recording name (everything before
// the trailing guid).
func Prefix(name string) string {
	base := strings.TrimSuffix(name, Suffix)
	if i := strings.LastIndex(base, "."); i > 0 {
		return base[:i]
	}
	return base
}

// GUID recovers the trailing guid of a recording name.
func GUID(name string) string {
	base := strings.TrimSuffix(name, Suffix)
	if i := strings.LastIndex(base, "."); i >= 0 && i+1 < len(base) {
		return base[i+1:]
	}
	return ""
}

// GamePrefix recovers the originating game id, the first dot-separated
// segment of the prefix.
func GamePrefix(name string) string {
	prefix := Prefix(name)
	if i := strings.Index(prefix, "."); i > 0 {
		return prefix[:i]
	}
	return prefix
}
