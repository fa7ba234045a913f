package model

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	boardEdge  = 4
	boardCells = boardEdge * boardEdge
	maxNibble  = 15
)

// DefaultPatterns are the four 6-tuples the published weights are trained on.
// Cells are numbered row-major on a 4x4 board.
var DefaultPatterns = [][]int{
	{0, 1, 2, 3, 4, 5},
	{4, 5, 6, 7, 8, 9},
	{0, 1, 2, 4, 5, 6},
	{4, 5, 6, 8, 9, 10},
}

// Feature is one n-tuple lookup table evaluated over the 8 board isometries.
type Feature struct {
	Pattern []int
	Weights []float32
	iso     [8][]int
}

// NewFeature creates a feature with zero weights.
func NewFeature(pattern []int) (*Feature, error) {
	if len(pattern) == 0 || len(pattern) > 6 {
		return nil, fmt.Errorf("pattern length must be between 1 and 6, got %d", len(pattern))
	}
	for _, c := range pattern {
		if c < 0 || c >= boardCells {
			return nil, fmt.Errorf("pattern cell %d out of range", c)
		}
	}
	f := &Feature{
		Pattern: append([]int(nil), pattern...),
		Weights: make([]float32, 1<<(4*len(pattern))),
	}
	f.iso = isometries(f.Pattern)
	return f, nil
}

// Name is the identifier written in front of the weights, for example
// "6-tuple pattern 012345".
func (f *Feature) Name() string {
	var sb strings.Builder
	for _, c := range f.Pattern {
		sb.WriteString(strconv.FormatInt(int64(c), 16))
	}
	return fmt.Sprintf("%d-tuple pattern %s", len(f.Pattern), sb.String())
}

func (f *Feature) estimate(board []int) float64 {
	var sum float64
	for _, cells := range f.iso {
		sum += float64(f.Weights[indexOf(cells, board)])
	}
	return sum
}

func indexOf(cells []int, board []int) int {
	index := 0
	for i, c := range cells {
		v := board[c]
		if v > maxNibble {
			v = maxNibble
		}
		index |= v << (4 * i)
	}
	return index
}

// isometries maps the pattern through the 4 rotations of the board and
// their mirror images.
func isometries(pattern []int) [8][]int {
	var iso [8][]int
	for i := 0; i < 8; i++ {
		var perm [boardCells]int
		for c := range perm {
			perm[c] = c
		}
		if i >= 4 {
			perm = flipHorizontal(perm)
		}
		for r := 0; r < i%4; r++ {
			perm = flipHorizontal(transpose(perm))
		}
		iso[i] = make([]int, len(pattern))
		for k, c := range pattern {
			iso[i][k] = perm[c]
		}
	}
	return iso
}

func transpose(p [boardCells]int) [boardCells]int {
	var out [boardCells]int
	for r := 0; r < boardEdge; r++ {
		for c := 0; c < boardEdge; c++ {
			out[r*boardEdge+c] = p[c*boardEdge+r]
		}
	}
	return out
}

func flipHorizontal(p [boardCells]int) [boardCells]int {
	var out [boardCells]int
	for r := 0; r < boardEdge; r++ {
		for c := 0; c < boardEdge; c++ {
			out[r*boardEdge+c] = p[r*boardEdge+(boardEdge-1-c)]
		}
	}
	return out
}

// Network is a sum of n-tuple features.
type Network struct {
	Features []*Feature
}

// NewNetwork creates a network with zero weights for the given patterns.
func NewNetwork(patterns [][]int) (*Network, error) {
	n := &Network{}
	for _, p := range patterns {
		f, err := NewFeature(p)
		if err != nil {
			return nil, err
		}
		n.Features = append(n.Features, f)
	}
	return n, nil
}

// Estimate returns the value of a 4x4 board given as flattened log2 values.
func (n *Network) Estimate(board []int) float64 {
	if len(board) != boardCells {
		return 0
	}
	var sum float64
	for _, f := range n.Features {
		sum += f.estimate(board)
	}
	return sum
}

// BuildNTuple parses a weights file into a Network. It is the default
// BuildFunc for the loader.
func BuildNTuple(data []byte) (Evaluator, error) {
	return ParseNTuple(data)
}

// ParseNTuple decodes the little-endian weights format: a u64 feature count,
// then for each feature an i32 name length, the name, a u64 weight count and
// the f32 weights. Patterns are recovered from the feature names.
func ParseNTuple(data []byte) (*Network, error) {
	r := bytes.NewReader(data)

	var count uint64
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("failed to read feature count: %w", err)
	}
	if count == 0 || count > 64 {
		return nil, fmt.Errorf("implausible feature count %d", count)
	}

	n := &Network{}
	for i := uint64(0); i < count; i++ {
		f, err := readFeature(r)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		n.Features = append(n.Features, f)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after weights", r.Len())
	}
	return n, nil
}

func readFeature(r *bytes.Reader) (*Feature, error) {
	var nameLen int32
	if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return nil, fmt.Errorf("failed to read name length: %w", err)
	}
	if nameLen <= 0 || int64(nameLen) > int64(r.Len()) {
		return nil, fmt.Errorf("invalid name length %d", nameLen)
	}
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, fmt.Errorf("failed to read name: %w", err)
	}

	pattern, err := parseFeatureName(string(name))
	if err != nil {
		return nil, err
	}
	f, err := NewFeature(pattern)
	if err != nil {
		return nil, err
	}

	var weightCount uint64
	if err := binary.Read(r, binary.LittleEndian, &weightCount); err != nil {
		return nil, fmt.Errorf("failed to read weight count: %w", err)
	}
	if weightCount != uint64(len(f.Weights)) {
		return nil, fmt.Errorf("%s: expected %d weights, got %d", f.Name(), len(f.Weights), weightCount)
	}
	if err := binary.Read(r, binary.LittleEndian, f.Weights); err != nil {
		return nil, fmt.Errorf("%s: failed to read weights: %w", f.Name(), err)
	}
	return f, nil
}

// parseFeatureName extracts the pattern from "<n>-tuple pattern <hex cells>".
func parseFeatureName(name string) ([]int, error) {
	var size int
	var cells string
	if _, err := fmt.Sscanf(name, "%d-tuple pattern %s", &size, &cells); err != nil {
		return nil, fmt.Errorf("invalid feature name %q: %w", name, err)
	}
	if len(cells) != size {
		return nil, fmt.Errorf("invalid feature name %q: %d cells listed for a %d-tuple", name, len(cells), size)
	}
	pattern := make([]int, size)
	for i, ch := range cells {
		v, err := strconv.ParseInt(string(ch), 16, 0)
		if err != nil {
			return nil, fmt.Errorf("invalid feature name %q: %w", name, err)
		}
		pattern[i] = int(v)
	}
	return pattern, nil
}

// WriteTo encodes the network in the format ParseNTuple reads.
func (n *Network) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint64(len(n.Features)))
	for _, f := range n.Features {
		name := f.Name()
		binary.Write(&buf, binary.LittleEndian, int32(len(name)))
		buf.WriteString(name)
		binary.Write(&buf, binary.LittleEndian, uint64(len(f.Weights)))
		binary.Write(&buf, binary.LittleEndian, f.Weights)
	}
	return buf.WriteTo(w)
}
