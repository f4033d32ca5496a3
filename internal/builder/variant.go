package builder

import (
	"sort"

	buildtrackerrors "github.com/sunholo/buildtrack/internal/errors"
)

// Variant names the incremental build-map construction strategy chosen
// for one build.
type Variant int

const (
	VariantFull Variant = iota
	VariantNormalized
	VariantFast
)

func (v Variant) String() string {
	switch v {
	case VariantFull:
		return "full"
	case VariantNormalized:
		return "normalized"
	case VariantFast:
		return "fast"
	default:
		return "unknown"
	}
}

// ChooseVariant selects the cheapest variant whose preconditions hold:
// fast when the target set is unchanged and no changed path is a recipe
// file, normalized when the target set is unchanged, full otherwise.
func ChooseVariant(targetSetMayChange bool, recipeFileChanged bool) Variant {
	if targetSetMayChange {
		return VariantFull
	}
	if recipeFileChanged {
		return VariantNormalized
	}
	return VariantFast
}

// AssertTargetSetUnchanged compares two target sets (order-insensitive)
// and returns BLD001 if they differ — guarding against a caller invoking
// FastIncremental/NormalizedIncremental when the target set has in fact
// moved, which those variants cannot detect on their own since they skip
// re-normalization.
func AssertTargetSetUnchanged(oldTargets, newTargets []string) error {
	if len(oldTargets) != len(newTargets) {
		return buildtrackerrors.WrapReport(
			buildtrackerrors.New(buildtrackerrors.BLD001, "target set changed across incremental builds"))
	}
	a := append([]string(nil), oldTargets...)
	b := append([]string(nil), newTargets...)
	sort.Strings(a)
	sort.Strings(b)
	for i := range a {
		if a[i] != b[i] {
			return buildtrackerrors.WrapReport(
				buildtrackerrors.New(buildtrackerrors.BLD001, "target set changed across incremental builds"))
		}
	}
	return nil
}
