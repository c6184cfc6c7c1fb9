package diff

import (
	"fmt"
	"strings"
)

// FormatEntries produces a human-readable summary of changes.
//
// Output format:
//
//	+ roads/r1     (added)
//	~ roads/r2     (modified)
//	- roads/r3     (removed)
func FormatEntries(entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}

	var b strings.Builder
	for _, e := range entries {
		var marker string
		switch e.Type() {
		case Added:
			marker = "+"
		case Removed:
			marker = "-"
		case Modified:
			marker = "~"
		}
		path := e.Path()
		if e.IsTree() {
			path += "/"
		}
		fmt.Fprintf(&b, "%s %s     (%s)\n", marker, path, e.Type())
	}
	return b.String()
}

// FormatAttributes produces a unified-diff-style listing of the attribute
// changes of one feature.
//
// Output format:
//
//	--- a/roads/r1
//	+++ b/roads/r1
//	-name: "Main St"
//	+name: "High St"
func FormatAttributes(path string, changes []AttributeChange) string {
	if len(changes) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n", path)
	fmt.Fprintf(&b, "+++ b/%s\n", path)
	for _, c := range changes {
		if !c.Old.IsNull() {
			fmt.Fprintf(&b, "-%s: %s\n", c.Name, c.Old)
		}
		if !c.New.IsNull() {
			fmt.Fprintf(&b, "+%s: %s\n", c.Name, c.New)
		}
	}
	return b.String()
}
