package wyrd_test

import (
	"testing"

	"github.com/sre-norns/wyrd/pkg/manifest"
	"github.com/stretchr/testify/require"

	"github.com/sre-norns/viewshot/pkg/wyrd"
)

func TestLabelHelpers(t *testing.T) {
	require.Equal(t, []string{"a", "b", "c"}, wyrd.Keys(manifest.Labels{"c": "3", "a": "1", "b": "2"}))
	require.Equal(t, "a=1,b=2", wyrd.FormatLabels(manifest.Labels{"b": "2", "a": "1"}))
	require.Equal(t, "", wyrd.FormatLabels(nil))
}

func TestLabels_Merging(t *testing.T) {
	testCases := map[string]struct {
		given  []manifest.Labels
		expect manifest.Labels
	}{
		"nil": {
			given:  []manifest.Labels{},
			expect: manifest.Labels{},
		},
		"identity": {
			given: []manifest.Labels{
				{"key": "value"},
			},
			expect: manifest.Labels{"key": "value"},
		},
		"two": {
			given: []manifest.Labels{
				{"key-1": "value-1"},
				{"key-2": "value-2"},
			},
			expect: manifest.Labels{
				"key-1": "value-1",
				"key-2": "value-2",
			},
		},
		"key-override": {
			given: []manifest.Labels{
				{"key-1": "value-1", "key-2": "value-2"},
				{"key-2": "value-Wooh"},
			},
			expect: manifest.Labels{
				"key-1": "value-1",
				"key-2": "value-Wooh",
			},
		},
		"mixed-bag": {
			given: []manifest.Labels{
				{"key-1": "value-1", "key-2": "value-2"},
				{"key-2": "value-Wooh", "key-3": "value-3"},
				{"key-2": "value-Naah", "key-4": "value-3"},
			},
			expect: manifest.Labels{
				"key-1": "value-1",
				"key-2": "value-Naah",
				"key-3": "value-3",
				"key-4": "value-3",
			},
		},
		"nil-set": {
			given: []manifest.Labels{
				nil,
				{"key-1": "value-1"},
			},
			expect: manifest.Labels{"key-1": "value-1"},
		},
	}

	for name, tc := range testCases {
		test := tc
		t.Run(name, func(t *testing.T) {
			require.Equal(t, test.expect, wyrd.MergeAll(test.given...))
		})
	}
}

func TestParseLabels(t *testing.T) {
	testCases := map[string]struct {
		given    []string
		expect   manifest.Labels
		expectOk bool
	}{
		"empty": {
			given:    nil,
			expect:   manifest.Labels{},
			expectOk: true,
		},
		"pairs": {
			given:    []string{"ci=true", " branch = main "},
			expect:   manifest.Labels{"ci": "true", "branch": "main"},
			expectOk: true,
		},
		"empty-value": {
			given:    []string{"ci="},
			expect:   manifest.Labels{"ci": ""},
			expectOk: true,
		},
		"no-separator": {
			given: []string{"ci"},
		},
		"no-key": {
			given: []string{"=true"},
		},
	}

	for name, tc := range testCases {
		test := tc
		t.Run(name, func(t *testing.T) {
			got, ok := wyrd.ParseLabels(test.given)
			require.Equal(t, test.expectOk, ok)
			if test.expectOk {
				require.Equal(t, test.expect, got)
			}
		})
	}
}
