// Package target turns user-supplied class identifiers into canonical class names.
package target

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ClassExt is the file extension of Apex class sources.
const ClassExt = ".cls"

// ErrInvalidInput is returned when no usable class name can be derived.
var ErrInvalidInput = errors.New("invalid input")

var trailingExtRe = regexp.MustCompile(`\.[^.]+$`)

// Normalize derives the canonical class set from raw identifiers, which may be
// file paths or bare names. The result keeps first-seen order; names that differ
// only in case collapse onto the first spelling.
func Normalize(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no class identifiers given", ErrInvalidInput)
	}

	var names []string
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		name := Name(r)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		names = append(names, name)
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no class names in %q", ErrInvalidInput, raw)
	}
	return names, nil
}

// Name returns the class name for a single identifier, or "" if none.
func Name(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	seg := lastSegment(raw)
	if hasSuffixFold(seg, ClassExt) {
		return strings.TrimSpace(seg[:len(seg)-len(ClassExt)])
	}
	return strings.TrimSpace(trailingExtRe.ReplaceAllString(seg, ""))
}

func lastSegment(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}
