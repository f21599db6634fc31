// Package discover finds candidate Salesforce source files in a project tree.
package discover

import (
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/model"
)

const (
	ClassExt   = ".cls"
	TriggerExt = ".trigger"
	FlowSuffix = ".flow-meta.xml"
)

// DefaultMetadataSuffixes are the UI and permission definitions that can
// grant or embed access to an Apex class.
var DefaultMetadataSuffixes = []string{
	".permissionset-meta.xml",
	".flexipage-meta.xml",
}

var skipDirs = map[string]struct{}{
	"node_modules":    {},
	".git":            {},
	".hg":             {},
	".svn":            {},
	".sfdx":           {},
	".sf":             {},
	".vscode":         {},
	".idea":           {},
	".husky":          {},
	".localdevserver": {},
	"__pycache__":     {},
	"coverage":        {},
	"build":           {},
	"dist":            {},
	"out":             {},
}

// Options tunes a walk. The zero value walks everything except the
// built-in skip list.
type Options struct {
	// SkipDirs names additional directories to prune, matched by base name.
	SkipDirs []string
	// Exclude holds doublestar globs matched against slash-separated relative paths.
	Exclude []string
	// MetadataSuffixes replaces DefaultMetadataSuffixes when non-empty.
	MetadataSuffixes []string
	// RespectGitignore filters files matched by the root .gitignore.
	RespectGitignore bool
}

// SkipsDir reports whether a walk prunes the directory at rel, a
// slash-separated path relative to the root.
func (o Options) SkipsDir(rel string) bool {
	name := path.Base(rel)
	if _, skip := skipDirs[name]; skip {
		return true
	}
	if slices.Contains(o.SkipDirs, name) {
		return true
	}
	return excluded(o.Exclude, rel)
}

// Files walks root once and returns every file that belongs to an artifact
// kind, sorted by path. Unreadable directories are skipped.
func Files(root string, opts Options) ([]model.FileEntry, error) {
	c := NewClassifier(opts.MetadataSuffixes)

	var gi *ignore.GitIgnore
	if opts.RespectGitignore {
		gi = loadGitignore(root)
	}

	var results []model.FileEntry

	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}
		if p == root {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if opts.SkipsDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		// Regular files only; symlinks and devices are skipped.
		if !d.Type().IsRegular() {
			return nil
		}

		kind, ok := c.Classify(rel)
		if !ok {
			return nil
		}
		if excluded(opts.Exclude, rel) {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		var size int64
		if info, err := d.Info(); err == nil {
			size = info.Size()
		}
		results = append(results, model.FileEntry{Path: rel, Kind: kind, Size: size})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

// Classifier maps relative paths to artifact kinds.
type Classifier struct {
	metadataSuffixes []string
}

// NewClassifier returns a Classifier recognising the given metadata suffixes,
// or DefaultMetadataSuffixes when none are given.
func NewClassifier(metadataSuffixes []string) *Classifier {
	if len(metadataSuffixes) == 0 {
		metadataSuffixes = DefaultMetadataSuffixes
	}
	lower := make([]string, len(metadataSuffixes))
	for i, s := range metadataSuffixes {
		lower[i] = strings.ToLower(s)
	}
	return &Classifier{metadataSuffixes: lower}
}

// Classify reports the artifact kind of a slash-separated relative path.
// Suffixes are disjoint across kinds, so at most one kind applies.
func (c *Classifier) Classify(rel string) (model.Kind, bool) {
	lower := strings.ToLower(rel)
	switch {
	case strings.HasSuffix(lower, ClassExt):
		return model.Apex, true
	case strings.HasSuffix(lower, TriggerExt) && HasSegment(lower, "triggers"):
		return model.Trigger, true
	case strings.HasSuffix(lower, FlowSuffix):
		return model.Flow, true
	case isBundleScript(lower):
		return model.Bundle, true
	}
	for _, s := range c.metadataSuffixes {
		if strings.HasSuffix(lower, s) {
			return model.Metadata, true
		}
	}
	return "", false
}

func isBundleScript(lower string) bool {
	ext := path.Ext(lower)
	if HasSegment(lower, "lwc") && (ext == ".js" || ext == ".ts") {
		return true
	}
	return HasSegment(lower, "aura") && ext == ".js"
}

// HasSegment reports whether seg appears as a whole directory component of
// the slash-separated path p.
func HasSegment(p, seg string) bool {
	parts := strings.Split(p, "/")
	for _, part := range parts[:len(parts)-1] {
		if part == seg {
			return true
		}
	}
	return false
}

func excluded(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
