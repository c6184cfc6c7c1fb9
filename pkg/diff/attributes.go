package diff

import (
	"fmt"

	"github.com/odvcencio/geogot/pkg/object"
)

// AttributeChange is one attribute whose value differs between two
// versions of a feature.
type AttributeChange struct {
	Index int
	Name  string
	Old   object.Value
	New   object.Value
}

// Attributes compares two versions of a feature value by value. A nil
// feature has no values; values past the end of the shorter feature
// compare as null. ft names the attributes and may be nil.
func Attributes(old, new *object.FeatureObj, ft *object.FeatureTypeObj) []AttributeChange {
	var oldVals, newVals []object.Value
	if old != nil {
		oldVals = old.Values
	}
	if new != nil {
		newVals = new.Values
	}
	n := max(len(oldVals), len(newVals))
	var out []AttributeChange
	for i := 0; i < n; i++ {
		a, b := valueAt(oldVals, i), valueAt(newVals, i)
		if a.Equal(b) {
			continue
		}
		out = append(out, AttributeChange{Index: i, Name: AttributeName(ft, i), Old: a, New: b})
	}
	return out
}

// AttributeName returns the name of attribute i in ft, or a positional
// name when ft does not describe it.
func AttributeName(ft *object.FeatureTypeObj, i int) string {
	if ft != nil && i < len(ft.Attributes) {
		return ft.Attributes[i].Name
	}
	return fmt.Sprintf("#%d", i)
}

func valueAt(vals []object.Value, i int) object.Value {
	if i < len(vals) {
		return vals[i]
	}
	return object.Null()
}
