// Package wyrd holds label helpers missing from the wyrd manifest package
package wyrd

import (
	"sort"
	"strings"

	"github.com/sre-norns/wyrd/pkg/manifest"
)

// Keys of the label set, sorted
func Keys(l manifest.Labels) []string {
	result := make([]string, 0, len(l))
	for k := range l {
		result = append(result, k)
	}
	sort.Strings(result)

	return result
}

// FormatLabels renders labels as k=v pairs sorted by key
func FormatLabels(l manifest.Labels) string {
	pairs := make([]string, 0, len(l))
	for _, k := range Keys(l) {
		pairs = append(pairs, k+"="+l[k])
	}

	return strings.Join(pairs, ",")
}

// MergeAll folds any number of label sets, later sets override values of earlier ones
func MergeAll(sets ...manifest.Labels) manifest.Labels {
	result := manifest.Labels{}
	for _, s := range sets {
		result = manifest.MergeLabels(result, s)
	}

	return result
}

// ParseLabels parses k=v pairs, as given on a command line
func ParseLabels(pairs []string) (manifest.Labels, bool) {
	result := make(manifest.Labels, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, false
		}

		result[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	return result, true
}
