package match

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/model"
)

// FlowSuffix is the file suffix of flow definitions.
const FlowSuffix = ".flow-meta.xml"

var (
	commentRe     = regexp.MustCompile(`(?s)<!--.*?-->`)
	labelCloseRe  = regexp.MustCompile(`(?i)</label\s*>`)
	fullNameRe    = regexp.MustCompile(`(?is)<fullname>(.*?)</fullname>`)
	actionCallsRe = regexp.MustCompile(`(?s)<actioncalls\b[^>]*>(.*?)</actioncalls>`)
	actionTypeRe  = regexp.MustCompile(`(?s)<actiontype>(.*?)</actiontype>`)
	actionNameRe  = regexp.MustCompile(`(?s)<actionname>(.*?)</actionname>`)
	apexActionRe  = regexp.MustCompile(`(?s)<apexaction\b[^>]*>(.*?)</apexaction>`)
	tagRe         = regexp.MustCompile(`<(/?)([A-Za-z_][\w.:-]*)[^<>]*?(/?)>`)
)

func init() {
	Matchers[model.Flow] = flowMatcher{}
}

type flowMatcher struct{}

func (flowMatcher) Subject(src *Source) (string, error) {
	return FlowLabel(src.Text, src.Path)
}

// Matches checks explicit class references, loosely shaped apexAction
// elements and apex-typed actionCalls blocks.
func (flowMatcher) Matches(src *Source, p *Pattern) bool {
	if referencesApexClass(src, p) {
		return true
	}
	lower := src.Lower()
	for _, m := range apexActionRe.FindAllStringSubmatch(lower, -1) {
		if strings.Contains(m[1], p.lower) {
			return true
		}
	}
	_, ok := src.flowApexActions()[p.lower]
	return ok
}

// flowApexActions returns the lowercased action names of every actionCalls
// block whose action type is exactly "apex".
func (s *Source) flowApexActions() map[string]struct{} {
	if s.apexActions != nil {
		return s.apexActions
	}
	s.apexActions = make(map[string]struct{})
	for _, block := range actionCallsRe.FindAllStringSubmatch(s.Lower(), -1) {
		typ := actionTypeRe.FindStringSubmatch(block[1])
		if typ == nil || strings.TrimSpace(typ[1]) != "apex" {
			continue
		}
		name := actionNameRe.FindStringSubmatch(block[1])
		if name == nil {
			continue
		}
		s.apexActions[strings.TrimSpace(name[1])] = struct{}{}
	}
	return s.apexActions
}

// FlowLabel returns the display name of a flow definition: the label that is
// a direct child of the root Flow element, else the first fullName element,
// else the file name without its flow suffix. A malformed document yields the
// fallback name together with the parse error.
func FlowLabel(text, rel string) (string, error) {
	stripped := commentRe.ReplaceAllString(text, "")

	label, err := rootLabel(stripped)
	if label != "" {
		return label, nil
	}
	if err != nil {
		err = fmt.Errorf("%s: reading label: %w", rel, err)
	}

	if m := fullNameRe.FindStringSubmatch(stripped); m != nil {
		if name := strings.TrimSpace(m[1]); name != "" {
			return name, err
		}
	}

	base := path.Base(rel)
	if strings.HasSuffix(strings.ToLower(base), FlowSuffix) {
		base = base[:len(base)-len(FlowSuffix)]
	}
	return base, err
}

// rootLabel streams the tags of doc keeping its own open-element stack, so
// mismatched or unclosed tags never abort the scan. When the decoder rejects
// the markup, the scan resumes at the offending '<' with a plain tag scanner
// and the error is returned only if no label turns up.
func rootLabel(doc string) (string, error) {
	d := xml.NewDecoder(strings.NewReader(doc))
	d.Strict = false
	d.Entity = xml.HTMLEntity

	var stack []string
	for {
		tok, err := d.RawToken()
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		if err != nil {
			off := int(d.InputOffset())
			if i := strings.LastIndexByte(doc[:off], '<'); i >= 0 {
				off = i
			}
			if label := scanRootLabel(doc, off, stack); label != "" {
				return label, nil
			}
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			off := int(d.InputOffset())
			selfClosing := off >= 2 && doc[off-2:off] == "/>"
			if !selfClosing && strings.EqualFold(t.Name.Local, "label") &&
				len(stack) == 1 && strings.EqualFold(stack[0], "flow") {
				if loc := labelCloseRe.FindStringIndex(doc[off:]); loc != nil {
					if label := strings.TrimSpace(doc[off : off+loc[0]]); label != "" {
						return label, nil
					}
				}
			}
			// Self-closing elements are followed by a synthetic end token,
			// so pushing here keeps the stack balanced.
			stack = append(stack, t.Name.Local)
		case xml.EndElement:
			stack = popUntil(stack, t.Name.Local)
		}
	}
}

// scanRootLabel continues a label search from doc[from:] with the given open
// elements, matching tags lexically. Anything that does not look like a tag
// is treated as text.
func scanRootLabel(doc string, from int, stack []string) string {
	for _, m := range tagRe.FindAllStringSubmatchIndex(doc[from:], -1) {
		end := from + m[1]
		name := localName(doc[from+m[4] : from+m[5]])
		switch {
		case m[3] > m[2]:
			stack = popUntil(stack, name)
		case m[7] > m[6]:
		default:
			if strings.EqualFold(name, "label") && len(stack) == 1 && strings.EqualFold(stack[0], "flow") {
				if loc := labelCloseRe.FindStringIndex(doc[end:]); loc != nil {
					if label := strings.TrimSpace(doc[end : end+loc[0]]); label != "" {
						return label
					}
				}
			}
			stack = append(stack, name)
		}
	}
	return ""
}

func localName(name string) string {
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// popUntil removes entries from the top of stack through the nearest element
// named name. An unmatched close tag empties the stack.
func popUntil(stack []string, name string) []string {
	for i := len(stack) - 1; i >= 0; i-- {
		if strings.EqualFold(stack[i], name) {
			return stack[:i]
		}
	}
	return stack[:0]
}
