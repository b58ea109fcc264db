package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/sre-norns/viewshot/pkg/prob"
	"github.com/sre-norns/viewshot/pkg/runner"
	"github.com/sre-norns/viewshot/pkg/viewport"
	"github.com/sre-norns/viewshot/pkg/wyrd"
)

type formatter func(io.Writer, any) error

func yamlFormatter(w io.Writer, resource any) error {
	data, err := yaml.Marshal(resource)
	if err != nil {
		return err
	}

	_, err = w.Write(data)
	return err
}

func jsonFormatter(w io.Writer, resource any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "\t")

	return encoder.Encode(resource)
}

// tableFormatter renders known types as tables, anything else as yaml
func tableFormatter(w io.Writer, resource any) error {
	switch value := resource.(type) {
	case runner.Report:
		renderReport(w, value)
	case prob.WaitResult:
		renderWaitResult(w, value)
	case []viewport.Viewport:
		renderViewports(w, value)
	default:
		return yamlFormatter(w, resource)
	}

	return nil
}

func getFormatter(formatName outputFormat) (formatter, error) {
	switch formatName {
	case "table":
		return tableFormatter, nil
	case "yaml", "yml":
		return yamlFormatter, nil
	case "json":
		return jsonFormatter, nil
	}

	return nil, fmt.Errorf("unsupported output format: %q", formatName)
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	if title != "" {
		t.SetTitle(title)
	}

	return t
}

func renderReport(w io.Writer, report runner.Report) {
	t := newTable(w, fmt.Sprintf("%s: %s", report.Kind, report.Status))
	t.AppendRow(table.Row{"url", report.URL})
	if report.Server != "" {
		t.AppendRow(table.Row{"server", report.Server})
	}
	t.AppendRow(table.Row{"ready", fmt.Sprintf("%d attempt(s) in %v", report.Ready.Attempts, report.Ready.Elapsed.Round(time.Millisecond))})
	t.AppendRow(table.Row{"duration", report.Duration.Round(time.Millisecond)})
	if len(report.Labels) > 0 {
		t.AppendRow(table.Row{"labels", wyrd.FormatLabels(report.Labels)})
	}
	if report.Error != "" {
		t.AppendRow(table.Row{"error", report.Error})
	}
	t.Render()

	if len(report.Shots) > 0 {
		shots := newTable(w, "")
		shots.AppendHeader(table.Row{"Viewport", "Size", "File", "Bytes", "Duration"})
		for _, shot := range report.Shots {
			shots.AppendRow(table.Row{shot.Viewport, fmt.Sprintf("%dx%d", shot.Width, shot.Height), shot.File, shot.Bytes, shot.Duration.Round(time.Millisecond)})
		}
		shots.Render()
	}

	if len(report.Checks) > 0 {
		checks := newTable(w, "")
		checks.AppendHeader(table.Row{"Check", "Expected", "Got", "Result"})
		for _, check := range report.Checks {
			result := "PASS"
			if !check.Passed {
				result = "FAIL"
			}
			got := check.Got
			if !check.Found {
				got = "<not found>"
			}
			checks.AppendRow(table.Row{check.Name, check.Expect, got, result})
		}
		checks.Render()
	}
}

func renderWaitResult(w io.Writer, result prob.WaitResult) {
	t := newTable(w, "")
	t.AppendHeader(table.Row{"Probe", "Status", "Attempts", "Elapsed", "Last failure"})
	t.AppendRow(table.Row{result.Kind, result.Status, result.Attempts, result.Elapsed.Round(time.Millisecond), result.LastFailure})
	t.Render()
}

func renderViewports(w io.Writer, viewports []viewport.Viewport) {
	t := newTable(w, "")
	t.AppendHeader(table.Row{"Name", "Width", "Height", "Touch", "File"})
	for _, v := range viewports {
		touch := ""
		if v.Touch {
			touch = "yes"
		}
		t.AppendRow(table.Row{v.Name, v.Width, v.Height, touch, v.Filename()})
	}
	t.Render()
}
