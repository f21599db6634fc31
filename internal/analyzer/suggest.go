package analyzer

import (
	"fmt"
	"path"
	"strings"

	"github.com/hbollon/go-edlib"

	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/discover"
	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/model"
	"github.com/ozkrgonzalez/UnifiedApexValidator-sub000/internal/trace"
)

// maxSuggestDistance is the largest edit distance offered as a correction.
const maxSuggestDistance = 2

// reportUndefined notes each class that has no class file among the
// candidates, naming the closest defined class when one is near.
func reportUndefined(classes []string, files []model.FileEntry, sink trace.Sink) {
	defined := make(map[string]string)
	for _, f := range files {
		if f.Kind != model.Apex {
			continue
		}
		base := path.Base(f.Path)
		stem := base[:len(base)-len(discover.ClassExt)]
		defined[strings.ToLower(stem)] = stem
	}

	for _, class := range classes {
		lower := strings.ToLower(class)
		if _, ok := defined[lower]; ok {
			continue
		}

		best, bestDist := "", -1
		for l, stem := range defined {
			d := edlib.LevenshteinDistance(lower, l)
			if bestDist < 0 || d < bestDist || (d == bestDist && stem < best) {
				best, bestDist = stem, d
			}
		}

		if best != "" && bestDist <= maxSuggestDistance {
			sink.Info(fmt.Sprintf("%s: no class file in project; did you mean %s?", class, best))
		} else {
			sink.Info(fmt.Sprintf("%s: no class file in project", class))
		}
	}
}
