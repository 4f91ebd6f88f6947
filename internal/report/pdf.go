package report

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/border"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// maxPDFRows caps the instance table; the CSV and xlsx reports carry all rows.
const maxPDFRows = 40

// PDFGenerator renders a printable benchmark summary.
type PDFGenerator struct {
	BaseGenerator
}

// NewPDFGenerator creates a PDF generator.
func NewPDFGenerator() *PDFGenerator {
	return &PDFGenerator{}
}

// Format returns FormatPDF.
func (g *PDFGenerator) Format() Format {
	return FormatPDF
}

var (
	primaryColor   = &props.Color{Red: 52, Green: 152, Blue: 219}
	headerBgColor  = &props.Color{Red: 44, Green: 62, Blue: 80}
	successColor   = &props.Color{Red: 39, Green: 174, Blue: 96}
	lightGrayColor = &props.Color{Red: 236, Green: 240, Blue: 241}
	darkGrayColor  = &props.Color{Red: 127, Green: 140, Blue: 141}

	titleStyle = props.Text{
		Size:  22,
		Style: fontstyle.Bold,
		Align: align.Center,
		Color: headerBgColor,
	}

	h2Style = props.Text{
		Size:  14,
		Style: fontstyle.Bold,
		Color: headerBgColor,
		Top:   5,
	}

	smallStyle = props.Text{
		Size:  8,
		Color: darkGrayColor,
	}

	metricValueStyle = props.Text{
		Size:  18,
		Style: fontstyle.Bold,
		Align: align.Center,
		Color: primaryColor,
	}

	metricLabelStyle = props.Text{
		Size:  9,
		Align: align.Center,
		Color: darkGrayColor,
		Top:   9,
	}

	tableHeaderStyle = &props.Cell{
		BackgroundColor: primaryColor,
	}

	tableHeaderTextStyle = props.Text{
		Size:  8,
		Style: fontstyle.Bold,
		Color: &props.Color{Red: 255, Green: 255, Blue: 255},
		Align: align.Center,
	}

	tableCellStyle = &props.Cell{
		BorderType:  border.Bottom,
		BorderColor: lightGrayColor,
	}

	tableCellTextStyle = props.Text{
		Size:  8,
		Align: align.Center,
	}

	winnerCellTextStyle = props.Text{
		Size:  8,
		Style: fontstyle.Bold,
		Align: align.Center,
		Color: successColor,
	}
)

// Generate renders the PDF.
func (g *PDFGenerator) Generate(ctx context.Context, data *Data) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber().
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		Build()

	m := maroto.New(cfg)

	g.addHeader(m, data)
	g.addOverview(m, data)
	g.addSummaryTable(m, data)
	if err := g.addResultsTable(ctx, m, data); err != nil {
		return nil, err
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return doc.GetBytes(), nil
}

func (g *PDFGenerator) addHeader(m core.Maroto, data *Data) {
	m.AddRow(15,
		text.NewCol(12, g.GetTitle(data), titleStyle),
	)
	m.AddRow(5,
		line.NewCol(12),
	)
	m.AddRow(6,
		text.NewCol(12, "Generated: "+g.FormatTimestamp(g.GetGeneratedAt(data)),
			props.Text{Size: 8, Color: darkGrayColor, Align: align.Right}),
	)
	m.AddRow(6)
}

type metricCard struct {
	Label string
	Value string
}

func (g *PDFGenerator) addOverview(m core.Maroto, data *Data) {
	var edges, cached int
	for _, r := range data.Results {
		if r == nil {
			continue
		}
		edges += r.NumEdges
		if r.Cached {
			cached++
		}
	}

	fastest := "-"
	bestWins := 0
	for _, s := range Summarize(data) {
		if s.Wins > bestWins {
			fastest, bestWins = s.Algorithm.String(), s.Wins
		}
	}

	g.addSection(m, "Overview")
	g.addMetricCards(m, []metricCard{
		{Label: "Instances", Value: fmt.Sprintf("%d", len(data.Results))},
		{Label: "Edges", Value: fmt.Sprintf("%d", edges)},
		{Label: "Cached", Value: fmt.Sprintf("%d", cached)},
		{Label: "Fastest", Value: fastest},
	})
}

func (g *PDFGenerator) addMetricCards(m core.Maroto, cards []metricCard) {
	colSize := 12 / len(cards)
	var cols []core.Col
	for _, card := range cards {
		cols = append(cols,
			col.New(colSize).Add(
				text.New(card.Value, metricValueStyle),
				text.New(card.Label, metricLabelStyle),
			),
		)
	}
	m.AddRow(20, cols...)
}

func (g *PDFGenerator) addSection(m core.Maroto, title string) {
	m.AddRow(10,
		text.NewCol(12, title, h2Style),
	)
	m.AddRow(2,
		line.NewCol(12, props.Line{Color: primaryColor}),
	)
	m.AddRow(4)
}

func (g *PDFGenerator) addSummaryTable(m core.Maroto, data *Data) {
	summaries := Summarize(data)
	if len(summaries) == 0 {
		return
	}

	g.addSection(m, "Algorithms")
	m.AddRow(8,
		text.NewCol(3, "Algorithm", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Total", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Mean", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Max", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(3, "Wins", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
	)
	for _, s := range summaries {
		m.AddRow(6,
			text.NewCol(3, s.Algorithm.String(), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, g.FormatDuration(s.TotalMs), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, g.FormatDuration(s.MeanMs), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, g.FormatDuration(s.MaxMs), tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(3, fmt.Sprintf("%d", s.Wins), tableCellTextStyle).WithStyle(tableCellStyle),
		)
	}
}

func (g *PDFGenerator) addResultsTable(ctx context.Context, m core.Maroto, data *Data) error {
	cols := g.Columns(data)
	if len(data.Results) == 0 {
		return nil
	}

	// instance and max flow take 5 of 12 grid columns, timings share the rest
	timingSize := 7
	if len(cols) > 0 {
		timingSize = 7 / len(cols)
		if timingSize < 1 {
			timingSize = 1
		}
	}

	g.addSection(m, "Instances")
	header := []core.Col{
		text.NewCol(3, "Instance", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
		text.NewCol(2, "Max Flow", tableHeaderTextStyle).WithStyle(tableHeaderStyle),
	}
	for _, a := range cols {
		header = append(header, text.NewCol(timingSize, ColumnName(a), tableHeaderTextStyle).WithStyle(tableHeaderStyle))
	}
	m.AddRow(8, header...)

	count := 0
	for _, r := range data.Results {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r == nil {
			continue
		}
		if count >= maxPDFRows {
			m.AddRow(6,
				text.NewCol(12, fmt.Sprintf("... and %d more rows", len(data.Results)-maxPDFRows), smallStyle),
			)
			break
		}

		winner, bestMs := -1, 0.0
		for i, a := range cols {
			if t, ok := r.Timing(a); ok && (winner < 0 || t.Millis() < bestMs) {
				winner, bestMs = i, t.Millis()
			}
		}

		row := []core.Col{
			text.NewCol(3, r.Instance, tableCellTextStyle).WithStyle(tableCellStyle),
			text.NewCol(2, fmt.Sprintf("%d", r.MaxFlow), tableCellTextStyle).WithStyle(tableCellStyle),
		}
		for i, a := range cols {
			value, style := "-", tableCellTextStyle
			if t, ok := r.Timing(a); ok {
				value = g.FormatFloat(t.Millis(), 2)
			}
			if i == winner {
				style = winnerCellTextStyle
			}
			row = append(row, text.NewCol(timingSize, value, style).WithStyle(tableCellStyle))
		}
		m.AddRow(6, row...)
		count++
	}
	return nil
}
