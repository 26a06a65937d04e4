package assemble

import (
	"fmt"

	"github.com/gobwas/glob"
)

// maskSet matches slash-separated paths relative to the experiment directory.
// Masks are compiled without separators, so '*' and '?' also match '/':
// "ts/*.json" covers ts/diurnal/*.json as well.
type maskSet []glob.Glob

func compileMasks(masks []string) (maskSet, error) {
	set := make(maskSet, 0, len(masks))
	for _, m := range masks {
		g, err := glob.Compile(m)
		if err != nil {
			return nil, fmt.Errorf("invalid mask %q: %w", m, err)
		}
		set = append(set, g)
	}
	return set, nil
}

// Match reports whether rel matches any mask.
func (s maskSet) Match(rel string) bool {
	for _, g := range s {
		if g.Match(rel) {
			return true
		}
	}
	return false
}
