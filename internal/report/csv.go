package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
)

// CSVGenerator writes one row per instance.
type CSVGenerator struct {
	BaseGenerator
}

// NewCSVGenerator creates a CSV generator.
func NewCSVGenerator() *CSVGenerator {
	return &CSVGenerator{}
}

// Format returns FormatCSV.
func (g *CSVGenerator) Format() Format {
	return FormatCSV
}

// csvWriter keeps the first write error.
type csvWriter struct {
	w   *csv.Writer
	err error
}

func (cw *csvWriter) Write(record []string) {
	if cw.err != nil {
		return
	}
	cw.err = cw.w.Write(record)
}

func (cw *csvWriter) Flush() {
	if cw.err != nil {
		return
	}
	cw.w.Flush()
	cw.err = cw.w.Error()
}

func (cw *csvWriter) Error() error {
	return cw.err
}

// Generate renders the header
// instance,left,right,nodes,edges,max_flow,<algo>_ms...,cached
// followed by one row per result. Timings keep three decimals; a missing
// timing is left empty.
func (g *CSVGenerator) Generate(ctx context.Context, data *Data) ([]byte, error) {
	var buf bytes.Buffer
	cw := &csvWriter{w: csv.NewWriter(&buf)}
	cols := g.Columns(data)

	header := []string{"instance", "left", "right", "nodes", "edges", "max_flow"}
	for _, a := range cols {
		header = append(header, ColumnName(a))
	}
	header = append(header, "cached")
	cw.Write(header)

	for _, r := range data.Results {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r == nil {
			continue
		}
		record := []string{
			r.Instance,
			strconv.Itoa(r.NumLeft),
			strconv.Itoa(r.NumRight),
			strconv.Itoa(r.NumNodes),
			strconv.Itoa(r.NumEdges),
			strconv.FormatInt(r.MaxFlow, 10),
		}
		for _, a := range cols {
			if t, ok := r.Timing(a); ok {
				record = append(record, g.FormatFloat(t.Millis(), 3))
			} else {
				record = append(record, "")
			}
		}
		record = append(record, strconv.FormatBool(r.Cached))
		cw.Write(record)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("csv write error: %w", err)
	}

	return buf.Bytes(), nil
}
