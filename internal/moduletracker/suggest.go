package moduletracker

import (
	"fmt"
	"sort"
	"strings"

	buildtrackerrors "github.com/sunholo/buildtrack/internal/errors"
)

// SuggestQualifiers ranks known by similarity to target, preferring exact
// prefix matches before falling back to length difference, and returns
// the top n.
func SuggestQualifiers(target string, known []string, n int) []string {
	candidates := append([]string(nil), known...)
	sort.Slice(candidates, func(i, j int) bool {
		iPrefix := strings.HasPrefix(candidates[i], target)
		jPrefix := strings.HasPrefix(candidates[j], target)
		if iPrefix != jPrefix {
			return iPrefix
		}
		return abs(len(candidates[i])-len(target)) < abs(len(candidates[j])-len(target))
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// ModuleNotTracked builds a TRK005 report for a lookup against an
// unknown qualifier, populated with up to three "did you mean"
// suggestions drawn from the tracker's currently known qualifiers.
func (t *Tracker) ModuleNotTracked(qualifier string) error {
	suggestions := SuggestQualifiers(qualifier, t.KnownQualifiers(), 3)

	report := buildtrackerrors.New(buildtrackerrors.TRK005, fmt.Sprintf("qualifier not tracked: %s", qualifier))
	if len(suggestions) > 0 {
		report = report.WithFix(fmt.Sprintf("did you mean: %s?", strings.Join(suggestions, ", ")), 0.5)
	}
	return buildtrackerrors.WrapReport(report)
}
