// Package toon implements TOON (Token-Oriented Object Notation) encoding of
// usage reports.
package toon

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a Report into TOON format: a per-class summary table
// followed by one row per (class, kind, artifact) reference.
func Encode(r *model.Report) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("repo: %s", encodeValue(r.Repo)))

	var classRows [][]string
	for i := range r.Entries {
		e := &r.Entries[i]
		row := []string{e.Class}
		for _, k := range model.Kinds {
			row = append(row, fmt.Sprintf("%d", len(e.UsedBy.Get(k))))
		}
		classRows = append(classRows, row)
	}
	classCols := []string{"class"}
	for _, k := range model.Kinds {
		classCols = append(classCols, strings.ToLower(string(k)))
	}
	parts = append(parts, formatTabular("classes", classCols, classRows))

	var usageRows [][]string
	for i := range r.Entries {
		e := &r.Entries[i]
		for _, k := range model.Kinds {
			for _, name := range e.UsedBy.Get(k) {
				usageRows = append(usageRows, []string{e.Class, string(k), name})
			}
		}
	}
	parts = append(parts, formatTabular("usage", []string{"class", "kind", "artifact"}, usageRows))

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
