// Package report renders benchmark results as CSV, Excel or PDF documents.
package report

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"bipflow/internal/algorithms"
	"bipflow/internal/benchmark"
)

// ErrUnknownFormat is returned for a format without a generator.
var ErrUnknownFormat = errors.New("unknown report format")

// Format identifies a report file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat maps a format name to a Format. "excel" is accepted for xlsx.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// FormatFromPath derives the format from the file extension of path.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// Data is everything a generator needs to render one report.
type Data struct {
	Title       string
	GeneratedAt time.Time
	Results     []*benchmark.Result
	// Algorithms fixes the column order. When empty the order of the first
	// result's timings is used.
	Algorithms []algorithms.Algorithm
}

// Generator renders Data in one format.
type Generator interface {
	Generate(ctx context.Context, data *Data) ([]byte, error)
	Format() Format
}

// ForFormat returns the generator for f.
func ForFormat(f Format) (Generator, error) {
	switch f {
	case FormatCSV:
		return NewCSVGenerator(), nil
	case FormatXLSX:
		return NewExcelGenerator(), nil
	case FormatPDF:
		return NewPDFGenerator(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
}

// BaseGenerator holds the helpers shared by all generators.
type BaseGenerator struct{}

// GetTitle returns the report title.
func (b *BaseGenerator) GetTitle(data *Data) string {
	if data.Title != "" {
		return data.Title
	}
	return "Bipartite Max-Flow Benchmark"
}

// GetGeneratedAt returns the generation time, defaulting to now.
func (b *BaseGenerator) GetGeneratedAt(data *Data) time.Time {
	if data.GeneratedAt.IsZero() {
		return time.Now()
	}
	return data.GeneratedAt
}

// Columns returns the algorithms in column order.
func (b *BaseGenerator) Columns(data *Data) []algorithms.Algorithm {
	if len(data.Algorithms) > 0 {
		return data.Algorithms
	}
	for _, r := range data.Results {
		if r == nil || len(r.Timings) == 0 {
			continue
		}
		cols := make([]algorithms.Algorithm, len(r.Timings))
		for i, t := range r.Timings {
			cols[i] = t.Algorithm
		}
		return cols
	}
	return nil
}

// FormatFloat formats v with the given precision.
func (b *BaseGenerator) FormatFloat(v float64, precision int) string {
	return fmt.Sprintf("%.*f", precision, v)
}

// FormatDuration formats milliseconds for humans.
func (b *BaseGenerator) FormatDuration(ms float64) string {
	if ms < 1000 {
		return fmt.Sprintf("%.2f ms", ms)
	}
	return fmt.Sprintf("%.2f s", ms/1000)
}

// FormatTimestamp formats t for report headers.
func (b *BaseGenerator) FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// ColumnName is the short column label of a, matching the driver header
// name,fifo_ms,hl_ms,dinic_ms.
func ColumnName(a algorithms.Algorithm) string {
	if a == algorithms.AlgorithmHighestLabel {
		return "hl_ms"
	}
	return a.String() + "_ms"
}

// AlgorithmSummary aggregates the timings of one algorithm over a report.
type AlgorithmSummary struct {
	Algorithm algorithms.Algorithm
	Instances int
	TotalMs   float64
	MeanMs    float64
	MinMs     float64
	MaxMs     float64
	// Wins counts the instances on which this algorithm was fastest.
	Wins int
}

// Summarize aggregates the results per algorithm in column order. Results
// without a timing for an algorithm are skipped for it.
func Summarize(data *Data) []AlgorithmSummary {
	var b BaseGenerator
	cols := b.Columns(data)
	out := make([]AlgorithmSummary, len(cols))
	for i, a := range cols {
		out[i].Algorithm = a
	}

	for _, r := range data.Results {
		if r == nil {
			continue
		}
		best, bestMs := -1, 0.0
		for i, a := range cols {
			t, ok := r.Timing(a)
			if !ok {
				continue
			}
			ms := t.Millis()
			s := &out[i]
			if s.Instances == 0 || ms < s.MinMs {
				s.MinMs = ms
			}
			if ms > s.MaxMs {
				s.MaxMs = ms
			}
			s.Instances++
			s.TotalMs += ms
			if best < 0 || ms < bestMs {
				best, bestMs = i, ms
			}
		}
		if best >= 0 {
			out[best].Wins++
		}
	}

	for i := range out {
		if out[i].Instances > 0 {
			out[i].MeanMs = out[i].TotalMs / float64(out[i].Instances)
		}
	}
	return out
}

// ColName returns the spreadsheet column name for a zero-based index.
func ColName(index int) string {
	result := ""
	for {
		result = string(rune('A'+index%26)) + result
		index = index/26 - 1
		if index < 0 {
			break
		}
	}
	return result
}

// Cell returns the address of a cell by zero-based column and one-based row.
func Cell(col, row int) string {
	return fmt.Sprintf("%s%d", ColName(col), row)
}
