package export

import (
	"slices"
	"strconv"
	"strings"
)

// RenderIndex returns the index.md text for items, sorted by path.
func RenderIndex(items []Item) string {
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b Item) int { return strings.Compare(a.RelativePath, b.RelativePath) })

	var b strings.Builder
	b.WriteString("# Export Index\n\n## Evidence\n\n")
	for _, it := range sorted {
		b.WriteString("- `")
		b.WriteString(it.RelativePath)
		b.WriteString("` (")
		b.WriteString(it.SHA256)
		b.WriteString(", ")
		b.WriteString(strconv.FormatInt(it.ByteSize, 10))
		b.WriteString(" bytes)\n")
	}
	return b.String()
}
