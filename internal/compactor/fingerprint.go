package compactor

import (
	"sort"
	"strings"
)

// Fingerprint returns a stable canonical encoding of a metric label
// map: sorted key=value pairs joined by commas. Two maps with
// identical key/value sets always collide, regardless of insertion
// order; without that guarantee, merging across chunks would silently
// duplicate series.
func Fingerprint(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	return b.String()
}
