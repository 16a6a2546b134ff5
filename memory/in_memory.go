package memory

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nanuguru/Med-Procedure/logging"
)

const maxKeywords = 10

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "this": true, "that": true,
}

// Memory is one stored entry.
type Memory struct {
	ID         string
	Content    string
	Metadata   map[string]any
	Importance float64
	Created    time.Time
	keywords   []string
}

// Recall is a Search hit together with its relevance, the number of query
// keywords the memory matched.
type Recall struct {
	Memory
	Relevance float64
}

// Options configure a Bank.
type Options struct {
	MaxSize int
	Logger  logging.Logger
}

// Bank is a process-local, bounded memory bank.
//
// Concurrency: protected by RWMutex. Search is an index lookup over the
// keywords of each stored memory.
type Bank struct {
	opts Options

	mu      sync.RWMutex
	seq     int
	order   []string                       // memory ids, oldest first
	entries map[string]Memory              // id -> memory
	index   map[string]map[string]struct{} // keyword -> ids
}

// NewBank creates an empty memory bank.
func NewBank(optFns ...func(o *Options)) *Bank {
	opts := Options{MaxSize: 1000, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = 1000
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Bank{
		opts:    opts,
		entries: make(map[string]Memory),
		index:   make(map[string]map[string]struct{}),
	}
}

// Store adds a memory and returns its id, evicting the oldest entry when the
// bank is full.
func (b *Bank) Store(content string, metadata map[string]any, importance float64) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.order) >= b.opts.MaxSize {
		b.evict(b.order[0])
	}

	id := fmt.Sprintf("mem_%d", b.seq)
	b.seq++

	m := Memory{
		ID:         id,
		Content:    content,
		Metadata:   maps.Clone(metadata),
		Importance: importance,
		Created:    time.Now(),
		keywords:   keywords(content),
	}
	b.entries[id] = m
	b.order = append(b.order, id)
	for _, kw := range m.keywords {
		ids, ok := b.index[kw]
		if !ok {
			ids = make(map[string]struct{})
			b.index[kw] = ids
		}
		ids[id] = struct{}{}
	}

	b.opts.Logger.Debug("Memory stored", "memory_id", id, "importance", importance, "size", len(b.order))
	return id
}

// Search returns up to limit memories sharing keywords with query, ordered by
// relevance and then importance. Memories below minImportance are skipped.
func (b *Bank) Search(query string, limit int, minImportance float64) []Recall {
	b.mu.RLock()
	defer b.mu.RUnlock()

	scores := map[string]float64{}
	for _, kw := range keywords(query) {
		for id := range b.index[kw] {
			scores[id]++
		}
	}

	results := make([]Recall, 0, len(scores))
	for id, score := range scores {
		m := b.entries[id]
		if m.Importance < minImportance {
			continue
		}
		results = append(results, Recall{Memory: clone(m), Relevance: score})
	}
	slices.SortFunc(results, func(x, y Recall) int {
		if c := cmp.Compare(y.Relevance, x.Relevance); c != 0 {
			return c
		}
		if c := cmp.Compare(y.Importance, x.Importance); c != 0 {
			return c
		}
		return cmp.Compare(x.Created.UnixNano(), y.Created.UnixNano())
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Recent returns up to limit memories, newest last.
func (b *Bank) Recent(limit int) []Memory {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := b.order
	if limit > 0 && len(ids) > limit {
		ids = ids[len(ids)-limit:]
	}
	out := make([]Memory, len(ids))
	for i, id := range ids {
		out[i] = clone(b.entries[id])
	}
	return out
}

// Len returns the number of stored memories.
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.order)
}

// Clear removes every memory.
func (b *Bank) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.order = nil
	b.entries = make(map[string]Memory)
	b.index = make(map[string]map[string]struct{})
	b.opts.Logger.Info("Memory bank cleared")
}

// evict removes id; callers hold the write lock.
func (b *Bank) evict(id string) {
	m, ok := b.entries[id]
	if !ok {
		return
	}
	delete(b.entries, id)
	b.order = slices.DeleteFunc(b.order, func(s string) bool { return s == id })
	for _, kw := range m.keywords {
		delete(b.index[kw], id)
		if len(b.index[kw]) == 0 {
			delete(b.index, kw)
		}
	}
}

func clone(m Memory) Memory {
	m.Metadata = maps.Clone(m.Metadata)
	m.keywords = nil
	return m
}

// keywords lowercases text and keeps the first distinct words longer than
// three runes that are not stop words.
func keywords(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-')
	}) {
		if len([]rune(w)) <= 3 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}
