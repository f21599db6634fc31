package match

import (
	"strings"

	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/model"
)

func init() {
	Matchers[model.Bundle] = bundleMatcher{}
}

type bundleMatcher struct{}

// Subject names the component: the path segment right after the last "lwc"
// segment. Scripts outside an lwc tree cannot be attributed.
func (bundleMatcher) Subject(src *Source) (string, error) {
	return BundleName(src.Path), nil
}

// Matches looks for an Apex method import (@salesforce/apex/[ns.]Class.method)
// or a bound controller reference (c.Class).
func (bundleMatcher) Matches(src *Source, p *Pattern) bool {
	return p.apexImport.MatchString(src.Text) || p.controller.MatchString(src.Text)
}

// BundleName returns the component name for a slash-separated script path,
// or "" when the path has no lwc segment.
func BundleName(rel string) string {
	parts := strings.Split(rel, "/")
	for i := len(parts) - 2; i >= 0; i-- {
		if strings.EqualFold(parts[i], "lwc") {
			return parts[i+1]
		}
	}
	return ""
}
