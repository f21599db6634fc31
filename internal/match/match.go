// Package match decides whether a candidate file references a target class.
//
// Each artifact kind registers a Matcher from an init function in its own
// file. Every rule is lexical: it runs over the raw file text, comments
// included, and compares class names case-insensitively.
package match

import (
	"path"
	"regexp"
	"strings"

	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/model"
)

// Matcher holds the detection rules for one artifact kind.
type Matcher interface {
	// Subject returns the display name recorded when src references a class.
	// An empty name means src cannot be attributed and is skipped. A non-nil
	// error is a recoverable problem worth reporting; the name is still usable.
	Subject(src *Source) (string, error)

	// Matches reports whether src references the class described by p.
	Matches(src *Source, p *Pattern) bool
}

// Matchers maps artifact kinds to their rules.
// Populated by init() functions in per-kind files.
var Matchers = map[model.Kind]Matcher{}

// For returns the matcher registered for kind, or nil.
func For(kind model.Kind) Matcher {
	return Matchers[kind]
}

// Source is the text of one candidate file.
type Source struct {
	Path string // Relative to repo root, slash separated
	Text string

	lower       string
	lowerDone   bool
	apexActions map[string]struct{}
}

// NewSource wraps the contents of the file at the slash-separated path rel.
func NewSource(rel string, data []byte) *Source {
	return &Source{Path: rel, Text: string(data)}
}

// Lower returns the lowercased text, computed once.
func (s *Source) Lower() string {
	if !s.lowerDone {
		s.lower = strings.ToLower(s.Text)
		s.lowerDone = true
	}
	return s.lower
}

// Base returns the file name without directories.
func (s *Source) Base() string {
	return path.Base(s.Path)
}

// Stem returns the file name with its last extension removed.
func (s *Source) Stem() string {
	base := s.Base()
	return strings.TrimSuffix(base, path.Ext(base))
}

// Pattern holds the compiled rules for one target class.
type Pattern struct {
	Name  string
	lower string

	newCall      *regexp.Regexp
	staticAccess *regexp.Regexp
	implements   *regexp.Regexp
	apexImport   *regexp.Regexp
	controller   *regexp.Regexp
}

// Compile builds the pattern set for class name.
func Compile(name string) *Pattern {
	q := regexp.QuoteMeta(name)
	return &Pattern{
		Name:         name,
		lower:        strings.ToLower(name),
		newCall:      regexp.MustCompile(`(?i)\bnew\s+` + q + `\b`),
		staticAccess: regexp.MustCompile(`(?i)\b` + q + `\.\w+`),
		implements:   regexp.MustCompile(`(?i)\bimplements\s+[^;{]*\b` + q + `\b`),
		apexImport:   regexp.MustCompile(`(?i)@[\w.-]+/apex/(?:\w+\.)?` + q + `\.\w+`),
		controller:   regexp.MustCompile(`(?i)\bc\.` + q + `\b`),
	}
}

// CompileAll compiles one pattern per class, preserving order.
func CompileAll(names []string) []*Pattern {
	out := make([]*Pattern, len(names))
	for i, n := range names {
		out[i] = Compile(n)
	}
	return out
}

// referencesApexClass reports the <apexClass>name</apexClass> element or the
// apexClass="name" attribute shared by flows and metadata definitions.
func referencesApexClass(src *Source, p *Pattern) bool {
	lower := src.Lower()
	return strings.Contains(lower, "<apexclass>"+p.lower+"</apexclass>") ||
		strings.Contains(lower, `apexclass="`+p.lower+`"`)
}
