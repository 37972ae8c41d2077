package types

import (
	"encoding/csv"
	"strings"
)

// FormatRow joins values as a single CSV line without the trailing newline.
// Values holding a comma, a quote or a line break are quoted.
func FormatRow(values ...string) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	// Write only fails when the underlying writer does.
	_ = w.Write(values)
	w.Flush()
	return strings.TrimSuffix(sb.String(), "\n")
}
