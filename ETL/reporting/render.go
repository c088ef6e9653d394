package reporting

import (
	"database/sql"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/jslozanod/etl-workshop-1/ETL/transform"
)

const (
	barWidth = 40
	barRune  = "█"
	maxScore = 10.0
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	muted   = color.New(color.FgHiBlack)
	good    = color.New(color.FgGreen, color.Bold)
)

// Bar is one labelled value of a text bar chart.
type Bar struct {
	Label string
	Value float64
}

// RenderTable prints a result as a table.
func RenderTable(w io.Writer, r *Result) {
	if len(r.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(r.Columns))
	for i, c := range r.Columns {
		header[i] = c
	}
	t.AppendHeader(header)

	for _, row := range r.Rows {
		out := make(table.Row, len(row))
		for i, v := range row {
			if v == nil {
				out[i] = "NULL"
				continue
			}
			out[i] = formatCell(v)
		}
		t.AppendRow(out)
	}
	t.Render()
}

// RenderBars prints a horizontal bar chart. Bars are scaled against scale, or
// against the largest value when scale is zero.
func RenderBars(w io.Writer, bars []Bar, scale float64, valueFormat string) {
	if len(bars) == 0 {
		_, _ = fmt.Fprintln(w, "(no data)")
		return
	}
	auto := scale == 0
	labelWidth := 0
	for _, b := range bars {
		if n := utf8.RuneCountInString(b.Label); n > labelWidth {
			labelWidth = n
		}
		if auto {
			scale = math.Max(scale, b.Value)
		}
	}
	for _, b := range bars {
		n := 0
		if scale > 0 {
			n = int(math.Round(b.Value / scale * barWidth))
		}
		pad := labelWidth - utf8.RuneCountInString(b.Label)
		_, _ = fmt.Fprintf(w, "%s%s │%s "+valueFormat+"\n",
			b.Label, strings.Repeat(" ", pad), strings.Repeat(barRune, n), b.Value)
	}
}

// CountryYearPivot is KPI 4 reshaped into one row per year and one column per
// country. Missing combinations are zero.
type CountryYearPivot struct {
	Years     []int64
	Countries []string
	Hires     [][]int64
}

// PivotCountryYear builds the pivot from a hires_by_country_year result.
func PivotCountryYear(r *Result) CountryYearPivot {
	years := map[int64]bool{}
	countries := map[string]bool{}
	cells := map[int64]map[string]int64{}
	for _, row := range r.Rows {
		country, _ := row[0].(string)
		year, _ := row[1].(int64)
		hires, _ := row[2].(int64)
		years[year] = true
		countries[country] = true
		if cells[year] == nil {
			cells[year] = map[string]int64{}
		}
		cells[year][country] += hires
	}

	p := CountryYearPivot{}
	for y := range years {
		p.Years = append(p.Years, y)
	}
	sort.Slice(p.Years, func(i, j int) bool { return p.Years[i] < p.Years[j] })
	for c := range countries {
		p.Countries = append(p.Countries, c)
	}
	sort.Strings(p.Countries)

	p.Hires = make([][]int64, len(p.Years))
	for i, y := range p.Years {
		p.Hires[i] = make([]int64, len(p.Countries))
		for j, c := range p.Countries {
			p.Hires[i][j] = cells[y][c]
		}
	}
	return p
}

// RenderChart prints the chart of one KPI. top limits the technology chart;
// zero shows every row.
func RenderChart(w io.Writer, r *Result, top int) error {
	_, _ = heading.Fprintln(w, r.Title)

	switch r.Name {
	case KPIHiresByTechnology:
		rows := r.Rows
		if top > 0 && len(rows) > top {
			rows = rows[:top]
			_, _ = muted.Fprintf(w, "top %d of %d\n", top, len(r.Rows))
		}
		RenderBars(w, labelled(rows), 0, "%.0f")
	case KPIHiresByYear, KPIHiresBySeniority:
		RenderBars(w, labelled(r.Rows), 0, "%.0f")
	case KPIHiresByCountryYear:
		renderPivot(w, PivotCountryYear(r))
	case KPIHireRate:
		rate := floatCell(r, 0, 0)
		if rate.Valid {
			_, _ = good.Fprintf(w, "%.2f%%\n", rate.Float64)
		} else {
			_, _ = fmt.Fprintln(w, "n/a (no applications)")
		}
		_, _ = muted.Fprintf(w, "HIRED when code >= %.0f and interview >= %.0f\n", transform.HireThreshold, transform.HireThreshold)
	case KPIAverageScores:
		code := floatCell(r, 0, 0)
		interview := floatCell(r, 0, 1)
		if !code.Valid && !interview.Valid {
			_, _ = fmt.Fprintln(w, "n/a (no hires)")
			break
		}
		RenderBars(w, []Bar{
			{Label: "Avg Code Score", Value: code.Float64},
			{Label: "Avg Interview Score", Value: interview.Float64},
		}, maxScore, "%.2f")
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKPI, r.Name)
	}
	_, _ = fmt.Fprintln(w)
	return nil
}

// RenderDashboard prints every chart under one title.
func RenderDashboard(w io.Writer, results []*Result, top int) error {
	_, _ = heading.Fprintln(w, "ETL Workshop - KPI Dashboard")
	_, _ = fmt.Fprintln(w)
	for _, r := range results {
		if err := RenderChart(w, r, top); err != nil {
			return err
		}
	}
	return nil
}

func renderPivot(w io.Writer, p CountryYearPivot) {
	if len(p.Years) == 0 {
		_, _ = fmt.Fprintln(w, "(no data)")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := table.Row{"year"}
	for _, c := range p.Countries {
		header = append(header, c)
	}
	t.AppendHeader(header)
	for i, y := range p.Years {
		row := table.Row{y}
		for _, h := range p.Hires[i] {
			row = append(row, h)
		}
		t.AppendRow(row)
	}
	t.Render()
}

// labelled turns (label, count) rows into bars.
func labelled(rows [][]any) []Bar {
	bars := make([]Bar, 0, len(rows))
	for _, row := range rows {
		bars = append(bars, Bar{Label: formatCell(row[0]), Value: nullFloat(row[1]).Float64})
	}
	return bars
}

func floatCell(r *Result, row, col int) sql.NullFloat64 {
	if row >= len(r.Rows) || col >= len(r.Rows[row]) {
		return sql.NullFloat64{}
	}
	return nullFloat(r.Rows[row][col])
}
