package generator

import (
	"fmt"
	"hash/fnv"

	"bipflow/internal/instance"
)

// Default benchmark grid.
var (
	DefaultSizes     = []int{20000, 30000, 40000}
	DefaultRatios    = []int{5, 1000}
	DefaultDensities = []int{2, 10}
)

// SuiteSpec describes one instance of the benchmark grid.
type SuiteSpec struct {
	Name    string
	Kind    Kind
	Nodes   int
	Ratio   int
	Density int
	Left    int
	Right   int
	Seed    uint64
}

// SuiteSpecs expands sizes × ratios × densities × kinds into instance specs.
// A total of n nodes is split into n/(ratio+1) left and the rest right nodes.
// Each spec's seed is derived from its name, so a spec generates the same
// instance no matter which grid it came from.
func SuiteSpecs(sizes, ratios, densities []int) []SuiteSpec {
	specs := make([]SuiteSpec, 0, len(sizes)*len(ratios)*len(densities)*len(AllKinds))
	for _, n := range sizes {
		for _, ratio := range ratios {
			for _, d := range densities {
				left := n / (ratio + 1)
				for _, kind := range AllKinds {
					name := SuiteName(n, ratio, d, kind)
					specs = append(specs, SuiteSpec{
						Name:    name,
						Kind:    kind,
						Nodes:   n,
						Ratio:   ratio,
						Density: d,
						Left:    left,
						Right:   n - left,
						Seed:    seedFor(name),
					})
				}
			}
		}
	}
	return specs
}

// SuiteName renders the benchmark file naming scheme.
func SuiteName(nodes, ratio, density int, kind Kind) string {
	return fmt.Sprintf("nodes-%d-ratio-%d-density-%d-%s", nodes, ratio, density, kind)
}

// Generate builds the instance described by s and names it after s.Name.
func (s SuiteSpec) Generate() (*instance.Instance, error) {
	inst, err := Generate(s.Kind, s.Left, s.Right, s.Density, s.Seed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name, err)
	}
	inst.Name = s.Name
	return inst, nil
}

func seedFor(name string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return h.Sum64()
}
