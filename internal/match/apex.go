package match

import (
	"strings"

	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/model"
)

func init() {
	Matchers[model.Apex] = apexMatcher{}
	Matchers[model.Trigger] = triggerMatcher{}
}

type apexMatcher struct{}

func (apexMatcher) Subject(src *Source) (string, error) {
	return src.Stem(), nil
}

// Matches applies inheritance, interface, constructor and static-access rules.
// A class never counts as a user of itself.
//
// The extends rule is a plain substring test, unlike the word-bounded rules
// below, so "extends FooBar" also matches Foo.
func (apexMatcher) Matches(src *Source, p *Pattern) bool {
	if strings.EqualFold(src.Stem(), p.Name) {
		return false
	}
	lower := src.Lower()
	if strings.Contains(lower, "extends "+p.lower) {
		return true
	}
	if strings.Contains(lower, "implements "+p.lower) || p.implements.MatchString(src.Text) {
		return true
	}
	return invokes(src, p)
}

type triggerMatcher struct{}

func (triggerMatcher) Subject(src *Source) (string, error) {
	return src.Stem(), nil
}

// Matches only looks for instantiation and static access; triggers cannot
// extend or implement.
func (triggerMatcher) Matches(src *Source, p *Pattern) bool {
	return invokes(src, p)
}

func invokes(src *Source, p *Pattern) bool {
	return p.newCall.MatchString(src.Text) || p.staticAccess.MatchString(src.Text)
}
