package report

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	resultsSheet = "Results"
	summarySheet = "Summary"
)

// ExcelGenerator writes a workbook with a results sheet and a per-algorithm
// summary sheet.
type ExcelGenerator struct {
	BaseGenerator
}

// NewExcelGenerator creates an xlsx generator.
func NewExcelGenerator() *ExcelGenerator {
	return &ExcelGenerator{}
}

// Format returns FormatXLSX.
func (g *ExcelGenerator) Format() Format {
	return FormatXLSX
}

// Generate renders the workbook.
func (g *ExcelGenerator) Generate(ctx context.Context, data *Data) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// the default sheet becomes the results sheet
	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	if err := g.writeResults(ctx, f, data, headerStyle); err != nil {
		return nil, err
	}
	if err := g.writeSummary(f, data, headerStyle); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (g *ExcelGenerator) writeResults(ctx context.Context, f *excelize.File, data *Data, headerStyle int) error {
	cols := g.Columns(data)

	headers := []string{"Instance", "Left", "Right", "Nodes", "Edges", "Max Flow"}
	for _, a := range cols {
		headers = append(headers, ColumnName(a))
	}
	headers = append(headers, "Cached", "Saturated", "Bottlenecks", "Avg Utilization")

	for i, h := range headers {
		f.SetCellValue(resultsSheet, Cell(i, 1), h)
	}
	last := ColName(len(headers) - 1)
	f.SetCellStyle(resultsSheet, "A1", last+"1", headerStyle)
	f.SetPanes(resultsSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	row := 2
	for _, r := range data.Results {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r == nil {
			continue
		}
		f.SetCellValue(resultsSheet, Cell(0, row), r.Instance)
		f.SetCellValue(resultsSheet, Cell(1, row), r.NumLeft)
		f.SetCellValue(resultsSheet, Cell(2, row), r.NumRight)
		f.SetCellValue(resultsSheet, Cell(3, row), r.NumNodes)
		f.SetCellValue(resultsSheet, Cell(4, row), r.NumEdges)
		f.SetCellValue(resultsSheet, Cell(5, row), r.MaxFlow)
		for i, a := range cols {
			if t, ok := r.Timing(a); ok {
				f.SetCellValue(resultsSheet, Cell(6+i, row), t.Millis())
			}
		}
		next := 6 + len(cols)
		f.SetCellValue(resultsSheet, Cell(next, row), r.Cached)
		if !r.Cached {
			f.SetCellValue(resultsSheet, Cell(next+1, row), r.Flow.SaturatedEdges)
			f.SetCellValue(resultsSheet, Cell(next+2, row), len(r.Flow.Bottlenecks))
			f.SetCellValue(resultsSheet, Cell(next+3, row), r.Flow.AverageUtilization)
		}
		row++
	}

	f.SetColWidth(resultsSheet, "A", "A", 30)
	f.SetColWidth(resultsSheet, "B", last, 12)
	return nil
}

func (g *ExcelGenerator) writeSummary(f *excelize.File, data *Data, headerStyle int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	f.SetCellValue(summarySheet, "A1", g.GetTitle(data))
	f.MergeCell(summarySheet, "A1", "G1")
	f.SetCellValue(summarySheet, "A2", "Generated")
	f.SetCellValue(summarySheet, "B2", g.FormatTimestamp(g.GetGeneratedAt(data)))
	f.SetCellValue(summarySheet, "A3", "Instances")
	f.SetCellValue(summarySheet, "B3", len(data.Results))

	headers := []string{"Algorithm", "Instances", "Total ms", "Mean ms", "Min ms", "Max ms", "Wins"}
	for i, h := range headers {
		f.SetCellValue(summarySheet, Cell(i, 5), h)
	}
	f.SetCellStyle(summarySheet, "A5", Cell(len(headers)-1, 5), headerStyle)

	row := 6
	for _, s := range Summarize(data) {
		f.SetCellValue(summarySheet, Cell(0, row), s.Algorithm.String())
		f.SetCellValue(summarySheet, Cell(1, row), s.Instances)
		f.SetCellValue(summarySheet, Cell(2, row), s.TotalMs)
		f.SetCellValue(summarySheet, Cell(3, row), s.MeanMs)
		f.SetCellValue(summarySheet, Cell(4, row), s.MinMs)
		f.SetCellValue(summarySheet, Cell(5, row), s.MaxMs)
		f.SetCellValue(summarySheet, Cell(6, row), s.Wins)
		row++
	}

	f.SetColWidth(summarySheet, "A", "A", 20)
	f.SetColWidth(summarySheet, "B", "G", 12)
	return nil
}
