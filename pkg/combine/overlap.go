package combine

import (
	"errors"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/soundscape-lab/sounddb/pkg/frame"
)

var ErrEmptyAxis = errors.New("cannot compute overlap of empty axes")

// OverlapRatio is the number of labels shared by every index divided by the
// length of the longest one. Repeated labels count once toward the
// intersection but fully toward the length.
func OverlapRatio(indexes ...*frame.Index) (float64, error) {
	if len(indexes) == 0 {
		return 0, ErrEmptyAxis
	}
	var shared mapset.Set[string]
	longest := 0
	for _, ix := range indexes {
		labels := mapset.NewThreadUnsafeSet(ix.Keys()...)
		if shared == nil {
			shared = labels
		} else {
			shared = shared.Intersect(labels)
		}
		longest = max(longest, ix.Len())
	}
	if longest == 0 {
		return 0, ErrEmptyAxis
	}
	return float64(shared.Cardinality()) / float64(longest), nil
}
