package match

import "github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/model"

func init() {
	Matchers[model.Metadata] = metadataMatcher{}
}

type metadataMatcher struct{}

// Subject is the full file name, extension included.
func (metadataMatcher) Subject(src *Source) (string, error) {
	return src.Base(), nil
}

func (metadataMatcher) Matches(src *Source, p *Pattern) bool {
	return referencesApexClass(src, p)
}
