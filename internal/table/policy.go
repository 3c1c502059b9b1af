package table

import (
	"fmt"
	"strings"
)

// HeaderMode selects how the header row is located.
type HeaderMode string

const (
	HeaderHeuristic HeaderMode = "heuristic"
	HeaderFixed     HeaderMode = "fixed"
)

// DefaultMinCells is the number of non-blank cells a row needs to qualify as
// a header under the heuristic policy.
const DefaultMinCells = 3

// HeaderPolicy configures header row detection.
type HeaderPolicy struct {
	Mode HeaderMode
	// FixedRow is the header row index for HeaderFixed (0, or 1 when the
	// sheet starts with a title row).
	FixedRow int
	// MinCells is the heuristic threshold. Zero means DefaultMinCells.
	MinCells int
}

// DefaultPolicy is the heuristic policy with the default threshold.
func DefaultPolicy() HeaderPolicy {
	return HeaderPolicy{Mode: HeaderHeuristic, MinCells: DefaultMinCells}
}

// FixedPolicy returns a policy that always uses the given row.
func FixedPolicy(row int) HeaderPolicy {
	return HeaderPolicy{Mode: HeaderFixed, FixedRow: row}
}

// ParseHeaderMode validates a mode name; empty means heuristic.
func ParseHeaderMode(s string) (HeaderMode, error) {
	switch HeaderMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", HeaderHeuristic:
		return HeaderHeuristic, nil
	case HeaderFixed:
		return HeaderFixed, nil
	default:
		return "", fmt.Errorf("unknown header policy %q", s)
	}
}

// Locate returns the zero-based index of the header row in raw.
func (p HeaderPolicy) Locate(raw Raw) (int, error) {
	if len(raw) == 0 {
		return 0, ErrEmptyInput
	}

	if p.Mode == HeaderFixed {
		if p.FixedRow < 0 || p.FixedRow >= len(raw) {
			return 0, fmt.Errorf("%w: fixed header row %d outside %d rows", ErrNoHeaderFound, p.FixedRow, len(raw))
		}
		return p.FixedRow, nil
	}

	// A lone title cell above a real header row.
	if len(raw) > 1 && filled(raw[0]) == 1 && filled(raw[1]) > 1 {
		return 1, nil
	}

	threshold := p.MinCells
	if threshold <= 0 {
		threshold = DefaultMinCells
	}
	for i, row := range raw {
		if filled(row) >= threshold {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: no row has at least %d non-empty cells", ErrNoHeaderFound, threshold)
}

func filled(row []string) int {
	n := 0
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}
