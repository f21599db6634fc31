package analyzer

import (
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// stamp identifies one version of a candidate file.
type stamp struct {
	path    string
	size    int64
	modTime int64
}

// fileResult is what a single file contributes to the index: the indices of
// the patterns it matched and the name it is reported under.
type fileResult struct {
	subject string
	hits    []int
}

// Memo remembers per-file results between runs over the same class list, so
// repeated analyses only read files whose size or modification time changed.
// It is safe for concurrent use.
type Memo struct {
	cache *lru.Cache[stamp, fileResult]

	mu      sync.Mutex
	classes string
}

// NewMemo returns a Memo holding results for up to size files.
func NewMemo(size int) (*Memo, error) {
	c, err := lru.New[stamp, fileResult](size)
	if err != nil {
		return nil, err
	}
	return &Memo{cache: c}, nil
}

// bind drops every entry when the class list differs from the previous run.
func (m *Memo) bind(classes []string) {
	key := strings.Join(classes, "\x00")

	m.mu.Lock()
	defer m.mu.Unlock()
	if key != m.classes {
		m.cache.Purge()
		m.classes = key
	}
}

func (m *Memo) get(s stamp) (fileResult, bool) {
	return m.cache.Get(s)
}

func (m *Memo) add(s stamp, r fileResult) {
	m.cache.Add(s, r)
}

// Len reports the number of remembered files.
func (m *Memo) Len() int {
	return m.cache.Len()
}
