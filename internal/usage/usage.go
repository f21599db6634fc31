// Package usage accumulates reverse-usage buckets and turns them into the
// final, deterministic usage entries.
package usage

import (
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/model"
)

// bucket is a case-insensitive set. When spellings collide the byte-wise
// smallest is kept, so the result does not depend on insertion order.
type bucket map[string]string

// Index holds one bucket per target class and artifact kind.
// It is safe for concurrent use.
type Index struct {
	mu      sync.Mutex
	classes []string
	buckets []map[model.Kind]bucket
}

// NewIndex creates empty buckets for every class, in order.
func NewIndex(classes []string) *Index {
	idx := &Index{
		classes: append([]string(nil), classes...),
		buckets: make([]map[model.Kind]bucket, len(classes)),
	}
	for i := range idx.buckets {
		m := make(map[model.Kind]bucket, len(model.Kinds))
		for _, k := range model.Kinds {
			m[k] = bucket{}
		}
		idx.buckets[i] = m
	}
	return idx
}

// Add records that name (an artifact of the given kind) references class
// number i. Adding a name twice is a no-op.
func (idx *Index) Add(i int, kind model.Kind, name string) {
	key := strings.ToLower(name)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	b := idx.buckets[i][kind]
	if prev, ok := b[key]; !ok || name < prev {
		b[key] = name
	}
}

// Entries returns one entry per class in target order, with every list
// sorted using locale-aware collation.
func (idx *Index) Entries() []model.UsageEntry {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	col := collate.New(language.Und)
	entries := make([]model.UsageEntry, len(idx.classes))
	for i, class := range idx.classes {
		entry := model.UsageEntry{Class: class}
		for _, k := range model.Kinds {
			entry.UsedBy.Set(k, sortedNames(col, idx.buckets[i][k]))
		}
		entries[i] = entry
	}
	return entries
}

func sortedNames(col *collate.Collator, b bucket) []string {
	names := make([]string, 0, len(b))
	for _, n := range b {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if c := col.CompareString(names[i], names[j]); c != 0 {
			return c < 0
		}
		return names[i] < names[j]
	})
	return names
}
