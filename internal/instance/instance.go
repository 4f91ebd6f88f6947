// Package instance reads and writes bipartite max-flow instances in the text
// format used by the benchmark data:
//
//	c <L> left nodes, <R> right nodes
//	p max <N> <M>
//	n <source> s
//	n <sink> t
//	<from> <to> <capacity>
//
// The first four lines are the header, in that order. Every further non-blank
// line that is not a "c" comment describes one directed edge.
package instance

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"bipflow/internal/graph"
	"bipflow/pkg/apperror"
)

// Parse errors. Returned errors wrap one of these together with the line number.
var (
	ErrMalformedHeader = errors.New("malformed header")
	ErrMalformedEdge   = errors.New("malformed edge")
	ErrSelfLoop        = errors.New("self-loop edge")
)

const maxLineSize = 1 << 20

// maxUnusedNodes bounds how far the declared node count may exceed the
// largest node id the instance references.
const maxUnusedNodes = 1 << 16

// Edge is one edge line of an instance.
type Edge struct {
	From     int
	To       int
	Capacity graph.Flow
}

// Instance is a parsed max-flow instance.
type Instance struct {
	// Name identifies the instance in reports, usually the file base name.
	Name string

	NumLeft  int
	NumRight int

	// NumNodes and NumEdges are the counts declared on the "p" line.
	NumNodes int
	NumEdges int

	Source int
	Sink   int

	Edges []Edge
}

// Build creates a finalized residual graph holding the instance edges in file
// order. Zero-capacity edges are dropped by the graph.
func (inst *Instance) Build() *graph.ResidualGraph {
	g := graph.New()
	for _, e := range inst.Edges {
		g.AddEdge(e.From, e.To, e.Capacity)
	}
	g.EnsureNodes(max(inst.NumNodes, inst.Source, inst.Sink) + 1)
	g.Finalize()
	return g
}

// Hash returns a stable content hash of the instance. The name does not take
// part, so two copies of the same file hash equally.
func (inst *Instance) Hash() string {
	h := sha256.New()
	_ = writeTo(h, inst) //nolint:errcheck // hash.Hash never fails
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// TotalCapacity sums the capacities of all edges leaving the source.
func (inst *Instance) TotalCapacity() graph.Flow {
	var total graph.Flow
	for _, e := range inst.Edges {
		if e.From == inst.Source && e.Capacity > 0 {
			total += e.Capacity
		}
	}
	return total
}

// =============================================================================
// Parsing
// =============================================================================

// ParseFile reads the instance stored at path. The instance name is the file
// base name without its extension. Parse failures are reported as
// apperror.CodeMalformedInput.
func ParseFile(path string) (*Instance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open instance: %w", err)
	}
	defer f.Close()

	inst, err := Parse(bufio.NewReaderSize(f, 1<<16))
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeMalformedInput, path)
	}
	inst.Name = NameFromPath(path)
	return inst, nil
}

// NameFromPath strips directory and extension from an instance path.
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Parse reads an instance from r.
func Parse(r io.Reader) (*Instance, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	inst := &Instance{}
	header := 0
	lineNo := 0

	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		if header < 4 {
			if err := parseHeaderLine(inst, header, line); err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			header++
			continue
		}

		if line[0] == 'c' {
			continue
		}

		e, err := parseEdge(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		inst.Edges = append(inst.Edges, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read instance: %w", err)
	}
	if header < 4 {
		return nil, fmt.Errorf("line %d: %w: expected 4 header lines, got %d", lineNo, ErrMalformedHeader, header)
	}
	if used := inst.maxNodeID() + 1; inst.NumNodes-used > maxUnusedNodes {
		return nil, fmt.Errorf("%w: %d nodes declared but the largest node id is %d", ErrMalformedHeader, inst.NumNodes, used-1)
	}

	return inst, nil
}

func (inst *Instance) maxNodeID() int {
	id := max(inst.Source, inst.Sink)
	for _, e := range inst.Edges {
		id = max(id, e.From, e.To)
	}
	return id
}

func parseHeaderLine(inst *Instance, index int, line string) error {
	fields := strings.Fields(line)

	switch index {
	case 0:
		// c <L> left nodes, <R> right nodes
		if len(fields) != 7 || fields[0] != "c" || fields[2] != "left" || fields[5] != "right" {
			return fmt.Errorf("%w: %q", ErrMalformedHeader, line)
		}
		left, err1 := strconv.Atoi(fields[1])
		right, err2 := strconv.Atoi(fields[4])
		if err1 != nil || err2 != nil || left < 0 || right < 0 {
			return fmt.Errorf("%w: bad partition sizes in %q", ErrMalformedHeader, line)
		}
		inst.NumLeft, inst.NumRight = left, right

	case 1:
		// p max <N> <M>
		if len(fields) != 4 || fields[0] != "p" || fields[1] != "max" {
			return fmt.Errorf("%w: %q", ErrMalformedHeader, line)
		}
		nodes, err1 := strconv.Atoi(fields[2])
		edges, err2 := strconv.Atoi(fields[3])
		if err1 != nil || err2 != nil || nodes < 0 || edges < 0 {
			return fmt.Errorf("%w: bad problem size in %q", ErrMalformedHeader, line)
		}
		inst.NumNodes, inst.NumEdges = nodes, edges

	case 2, 3:
		// n <id> s|t
		want := "s"
		if index == 3 {
			want = "t"
		}
		if len(fields) != 3 || fields[0] != "n" || fields[2] != want {
			return fmt.Errorf("%w: expected terminal %q, got %q", ErrMalformedHeader, want, line)
		}
		id, err := strconv.Atoi(fields[1])
		if err != nil || id < 0 {
			return fmt.Errorf("%w: bad terminal id in %q", ErrMalformedHeader, line)
		}
		if index == 2 {
			inst.Source = id
		} else {
			inst.Sink = id
		}
	}

	return nil
}

func parseEdge(line string) (Edge, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Edge{}, fmt.Errorf("%w: want 3 fields, got %d in %q", ErrMalformedEdge, len(fields), line)
	}

	from, err := strconv.Atoi(fields[0])
	if err != nil || from < 0 {
		return Edge{}, fmt.Errorf("%w: bad tail in %q", ErrMalformedEdge, line)
	}
	to, err := strconv.Atoi(fields[1])
	if err != nil || to < 0 {
		return Edge{}, fmt.Errorf("%w: bad head in %q", ErrMalformedEdge, line)
	}
	capacity, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return Edge{}, fmt.Errorf("%w: bad capacity in %q", ErrMalformedEdge, line)
	}
	if from == to {
		return Edge{}, fmt.Errorf("%w: node %d", ErrSelfLoop, from)
	}

	return Edge{From: from, To: to, Capacity: capacity}, nil
}

// =============================================================================
// Writing
// =============================================================================

// Write renders inst in the text format accepted by Parse.
func Write(w io.Writer, inst *Instance) error {
	bw := bufio.NewWriterSize(w, 1<<16)
	if err := writeTo(bw, inst); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteFile stores inst at path, creating or truncating the file.
func WriteFile(path string, inst *Instance) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Write(f, inst)
}

func writeTo(w io.Writer, inst *Instance) error {
	if _, err := fmt.Fprintf(w, "c %d left nodes, %d right nodes\np max %d %d\nn %d s\nn %d t\n",
		inst.NumLeft, inst.NumRight, inst.NumNodes, inst.NumEdges, inst.Source, inst.Sink); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	buf := make([]byte, 0, 64)
	for _, e := range inst.Edges {
		buf = buf[:0]
		buf = strconv.AppendInt(buf, int64(e.From), 10)
		buf = append(buf, ' ')
		buf = strconv.AppendInt(buf, int64(e.To), 10)
		buf = append(buf, ' ')
		buf = strconv.AppendInt(buf, e.Capacity, 10)
		buf = append(buf, '\n')
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write edge: %w", err)
		}
	}
	return nil
}
