package sweep

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// MaxWidth is the longest candidate the generator produces.
const MaxWidth = 9

// Candidate is one digit-string probe value.
//
// Value is the numeric value and Width the number of digits, so "007" is
// {7, 3} and "7" is {7, 1}. Keeping the numeric form lets workers filter by
// partition without formatting every candidate they skip.
type Candidate struct {
	Value uint64
	Width int
}

// String renders the candidate zero-padded to its width.
func (c Candidate) String() string {
	s := strconv.FormatUint(c.Value, 10)
	if len(s) >= c.Width {
		return s
	}
	return strings.Repeat("0", c.Width-len(s)) + s
}

// ParseCandidate parses a 1-9 digit string, preserving leading zeros.
func ParseCandidate(s string) (Candidate, error) {
	if len(s) == 0 || len(s) > MaxWidth {
		return Candidate{}, fmt.Errorf("%w: %q must be 1-%d digits", ErrInvalidCandidate, s, MaxWidth)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return Candidate{}, fmt.Errorf("%w: %q contains a non-digit", ErrInvalidCandidate, s)
		}
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Candidate{}, fmt.Errorf("%w: %v", ErrInvalidCandidate, err)
	}
	return Candidate{Value: v, Width: len(s)}, nil
}

// Candidates returns the full ordered candidate sequence:
// "1".."9", then every width from 2 to 9 zero-padded in increasing order.
// The sequence is restartable; every range over it starts from "1".
func Candidates() iter.Seq[Candidate] {
	return CandidatesUpTo(MaxWidth)
}

// CandidatesUpTo is the prefix of Candidates that stops after the given
// width. Widths outside 1..MaxWidth are clamped.
func CandidatesUpTo(maxWidth int) iter.Seq[Candidate] {
	maxWidth = min(max(maxWidth, 1), MaxWidth)
	return func(yield func(Candidate) bool) {
		for v := uint64(1); v <= 9; v++ {
			if !yield(Candidate{Value: v, Width: 1}) {
				return
			}
		}
		for w := 2; w <= maxWidth; w++ {
			limit := pow10(w)
			for v := uint64(0); v < limit; v++ {
				if !yield(Candidate{Value: v, Width: w}) {
					return
				}
			}
		}
	}
}

// CountForWidth returns how many candidates of the given width the generator
// yields.
func CountForWidth(width int) uint64 {
	switch {
	case width == 1:
		return 9
	case width >= 2 && width <= MaxWidth:
		return pow10(width)
	default:
		return 0
	}
}

// TotalCandidates is the length of the full sequence.
func TotalCandidates() uint64 {
	var total uint64
	for w := 1; w <= MaxWidth; w++ {
		total += CountForWidth(w)
	}
	return total
}

// Owns reports whether the partition owns the candidate (numeric residue).
func Owns(c Candidate, partitionID, partitionCount int) bool {
	if partitionCount <= 1 {
		return true
	}
	return c.Value%uint64(partitionCount) == uint64(partitionID)
}

// PartitionSize returns the exact number of candidates owned by a partition.
func PartitionSize(partitionID, partitionCount int) uint64 {
	if partitionCount <= 1 {
		return TotalCandidates()
	}
	k := uint64(partitionCount)
	id := uint64(partitionID)
	// width 1 covers 1..9
	total := residuesIn(1, 10, id, k)
	for w := 2; w <= MaxWidth; w++ {
		total += residuesIn(0, pow10(w), id, k)
	}
	return total
}

// residuesIn counts v in [lo, hi) with v%k == id.
func residuesIn(lo, hi, id, k uint64) uint64 {
	below := func(n uint64) uint64 {
		if n <= id {
			return 0
		}
		return (n-id-1)/k + 1
	}
	return below(hi) - below(lo)
}

func pow10(n int) uint64 {
	p := uint64(1)
	for range n {
		p *= 10
	}
	return p
}
