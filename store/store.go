// Package store implements the append-only run log: one JSON-Lines
// RunRecord per completed agent run, persisted under a configurable
// directory and indexed in memory on load for the results {list|stats|
// export|import} CLI family, per spec.md §6.
package store

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/shoheigorila/a1agent/log"
)

// TurnSummary is the optional per-turn record spec.md §6 allows alongside
// a RunRecord.
type TurnSummary struct {
	Turn               int      `json:"turn"`
	ToolCalls          []string `json:"toolCalls"`
	StrategyCodePrefix string   `json:"strategyCodePrefix"`
	ExecOutcomeDigest  string   `json:"execOutcomeDigest"`
}

// RunRecord is one completed agent run, per spec.md §6's field list.
type RunRecord struct {
	RunID           string        `json:"runId"`
	Target          string        `json:"target"`
	ChainID         uint64        `json:"chainId"`
	Block           string        `json:"block"`
	ModelName       string        `json:"modelName"`
	OK              bool          `json:"ok"`
	BestProfit      string        `json:"bestProfit"`
	Turns           int           `json:"turns"`
	TotalTokens     int           `json:"totalTokens"`
	TotalToolCalls  int           `json:"totalToolCalls"`
	DurationSeconds float64       `json:"durationSeconds"`
	Error           string        `json:"error,omitempty"`
	Timestamp       time.Time     `json:"timestamp"`
	TurnSummaries   []TurnSummary `json:"turnSummaries,omitempty"`
}

// MakeRunID computes runId = sha256("target:model:timestamp")[:16] (hex),
// per spec.md §6.
func MakeRunID(target, model string, timestamp time.Time) string {
	seed := fmt.Sprintf("%s:%s:%d", target, model, timestamp.UnixNano())
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])[:16]
}

const runLogFilename = "runs.jsonl"

// Store is an append-only JSON-Lines run log with an in-memory index
// rebuilt from the file on Load.
type Store struct {
	mu      sync.Mutex
	dir     string
	records []RunRecord
	byID    map[string]int
	log     log.Logger
}

// Open returns a Store rooted at dir, creating dir if absent, and loads
// any existing records from dir/runs.jsonl.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create dir: %w", err)
	}
	s := &Store{
		dir:  dir,
		byID: make(map[string]int),
		log:  log.New("component", "store"),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) path() string {
	return filepath.Join(s.dir, runLogFilename)
}

func (s *Store) load() error {
	f, err := os.Open(s.path())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: open run log: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec RunRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			s.log.Warn("skipping malformed run record", "err", err)
			continue
		}
		s.index(rec)
	}
	return scanner.Err()
}

func (s *Store) index(rec RunRecord) {
	if idx, exists := s.byID[rec.RunID]; exists {
		s.records[idx] = rec
		return
	}
	s.byID[rec.RunID] = len(s.records)
	s.records = append(s.records, rec)
}

// Append writes rec to the run log and updates the in-memory index.
func (s *Store) Append(rec RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("store: open run log for append: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: marshal run record: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("store: append run record: %w", err)
	}

	s.index(rec)
	return nil
}

// Filter narrows a List/Stats query.
type Filter struct {
	Target    string
	ModelName string
	OKOnly    bool
	Since     time.Time
}

func (f Filter) matches(rec RunRecord) bool {
	if f.Target != "" && rec.Target != f.Target {
		return false
	}
	if f.ModelName != "" && rec.ModelName != f.ModelName {
		return false
	}
	if f.OKOnly && !rec.OK {
		return false
	}
	if !f.Since.IsZero() && rec.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// List returns matching records, most recent first.
func (s *Store) List(f Filter) []RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]RunRecord, 0, len(s.records))
	for _, rec := range s.records {
		if f.matches(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// Export writes every matching record as JSON-Lines to w-backed path dst.
func (s *Store) Export(dst string, f Filter) error {
	records := s.List(f)
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("store: create export file: %w", err)
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("store: encode exported record: %w", err)
		}
	}
	return nil
}

// Import reads JSON-Lines records from src and appends any not already
// present by RunID.
func (s *Store) Import(src string) (int, error) {
	f, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("store: open import file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	imported := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec RunRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return imported, fmt.Errorf("store: decode import record: %w", err)
		}
		s.mu.Lock()
		_, exists := s.byID[rec.RunID]
		s.mu.Unlock()
		if exists {
			continue
		}
		if err := s.Append(rec); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, scanner.Err()
}

// All returns every indexed record in load/append order.
func (s *Store) All() []RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RunRecord, len(s.records))
	copy(out, s.records)
	return out
}
