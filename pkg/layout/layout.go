package layout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sre-norns/viewshot/pkg/browser"
	"github.com/sre-norns/viewshot/pkg/viewport"
)

var ErrInvalidExpectation = fmt.Errorf("invalid expectation")

// Check asserts the computed style of an element rendered at a viewport
type Check struct {
	Name     string            `json:"name" yaml:"name"`
	Viewport viewport.Viewport `json:"viewport" yaml:"viewport"`
	TestID   string            `json:"testId" yaml:"testId"`
	Property string            `json:"property" yaml:"property"`
	Expect   string            `json:"expect" yaml:"expect"`
}

type Result struct {
	Check `json:",inline" yaml:",inline"`

	Got    string `json:"got" yaml:"got"`
	Found  bool   `json:"found" yaml:"found"`
	Passed bool   `json:"passed" yaml:"passed"`
}

// Expectation is a check without a viewport: testid:property=value
type Expectation struct {
	TestID   string
	Property string
	Expect   string
}

var (
	mobileLayout  = viewport.Viewport{Name: "mobile", Width: 375, Height: 667, Touch: true}
	desktopLayout = viewport.Viewport{Name: "desktop", Width: 1280, Height: 720}

	defaultExpectations = []Expectation{
		{TestID: "card-rank-suit", Property: "flex-direction", Expect: "column"},
	}
)

// Viewports the layout checks run at
func Viewports() []viewport.Viewport {
	return []viewport.Viewport{mobileLayout, desktopLayout}
}

// Defaults are the built-in layout checks
func Defaults() []Check {
	return Expand(defaultExpectations)
}

// Expand applies every expectation at each of the layout viewports
func Expand(expectations []Expectation) []Check {
	result := make([]Check, 0, len(expectations)*2)
	for _, v := range Viewports() {
		for _, e := range expectations {
			result = append(result, Check{
				Name:     fmt.Sprintf("%s/%s/%s", v.Name, e.TestID, e.Property),
				Viewport: v,
				TestID:   e.TestID,
				Property: e.Property,
				Expect:   e.Expect,
			})
		}
	}

	return result
}

// ParseExpectation parses testid:property=value
func ParseExpectation(value string) (Expectation, error) {
	testID, rest, ok := strings.Cut(value, ":")
	if !ok || testID == "" {
		return Expectation{}, fmt.Errorf("%w %q: expected testid:property=value", ErrInvalidExpectation, value)
	}

	property, expect, ok := strings.Cut(rest, "=")
	if !ok || property == "" {
		return Expectation{}, fmt.Errorf("%w %q: expected testid:property=value", ErrInvalidExpectation, value)
	}

	return Expectation{
		TestID:   strings.TrimSpace(testID),
		Property: strings.TrimSpace(property),
		Expect:   strings.TrimSpace(expect),
	}, nil
}

// Evaluate runs checks on the page, grouped by viewport so each viewport is loaded once.
// An element that is missing fails its check, only browser errors are returned as error.
func Evaluate(ctx context.Context, page browser.Page, url string, settle time.Duration, checks []Check) ([]Result, error) {
	results := make([]Result, 0, len(checks))

	for _, group := range groupByViewport(checks) {
		v := group[0].Viewport
		if err := page.SetViewport(ctx, v); err != nil {
			return results, fmt.Errorf("viewport %v: %w", v, err)
		}

		if err := page.Navigate(ctx, url); err != nil {
			return results, fmt.Errorf("viewport %v: %w", v, err)
		}

		if err := page.Settle(ctx, settle); err != nil {
			return results, err
		}

		for _, check := range group {
			got, found, err := page.ComputedStyle(ctx, check.TestID, check.Property)
			if err != nil {
				return results, fmt.Errorf("check %q: %w", check.Name, err)
			}

			results = append(results, Result{
				Check:  check,
				Got:    got,
				Found:  found,
				Passed: found && strings.TrimSpace(got) == check.Expect,
			})
		}
	}

	return results, nil
}

// groupByViewport keeps the order in which viewports first appear
func groupByViewport(checks []Check) [][]Check {
	var groups [][]Check
	index := map[viewport.Viewport]int{}

	for _, c := range checks {
		i, ok := index[c.Viewport]
		if !ok {
			i = len(groups)
			index[c.Viewport] = i
			groups = append(groups, nil)
		}

		groups[i] = append(groups[i], c)
	}

	return groups
}

func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}

	return failed
}
