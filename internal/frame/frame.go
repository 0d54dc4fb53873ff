// Package frame builds the single-row, column-ordered input handed to a
// classifier.
package frame

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Kind is the storage type of a column.
type Kind int

const (
	// Numeric columns carry a float64.
	Numeric Kind = iota
	// Categorical columns carry a discrete string label.
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// Value is a raw input cell before categorical tagging.
type Value struct {
	Num      float64
	Str      string
	IsString bool
}

// Number builds a numeric value.
func Number(v float64) Value { return Value{Num: v} }

// String builds a string value.
func String(v string) Value { return Value{Str: v, IsString: true} }

// Column is one typed cell of the frame.
type Column struct {
	Name string
	Kind Kind
	Num  float64
	Cat  string
}

// Frame is a single row of columns in classifier order.
type Frame struct {
	Columns []Column
}

// Build projects values onto order. Names listed in categorical are tagged as
// categorical; every other column must be numeric. Values not named in order
// are dropped.
func Build(values map[string]Value, order []string, categorical []string) (Frame, error) {
	if len(order) == 0 {
		return Frame{}, fmt.Errorf("feature order is empty")
	}
	catSet := make(map[string]struct{}, len(categorical))
	for _, name := range categorical {
		catSet[name] = struct{}{}
	}

	cols := make([]Column, 0, len(order))
	for _, name := range order {
		v, ok := values[name]
		if !ok {
			return Frame{}, fmt.Errorf("feature %q not present in input", name)
		}
		if _, isCat := catSet[name]; isCat {
			label, err := categoryLabel(name, v)
			if err != nil {
				return Frame{}, err
			}
			cols = append(cols, Column{Name: name, Kind: Categorical, Cat: label})
			continue
		}
		if v.IsString {
			return Frame{}, fmt.Errorf("feature %q: expected numeric value, got string %q", name, v.Str)
		}
		cols = append(cols, Column{Name: name, Kind: Numeric, Num: v.Num})
	}
	return Frame{Columns: cols}, nil
}

// categoryLabel turns integral numbers into their decimal form so they can be
// used as category labels; fractional numbers have no stable label.
func categoryLabel(name string, v Value) (string, error) {
	if v.IsString {
		return v.Str, nil
	}
	if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) || v.Num != math.Trunc(v.Num) {
		return "", fmt.Errorf("feature %q: categorical value %v is not an integer or string", name, v.Num)
	}
	return strconv.FormatInt(int64(v.Num), 10), nil
}

// Len returns the number of columns.
func (f Frame) Len() int { return len(f.Columns) }

// Names returns the column names in order.
func (f Frame) Names() []string {
	names := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = c.Name
	}
	return names
}

// Fingerprint hashes names, kinds and values of the frame. Two frames with
// the same fingerprint are the same classifier input.
func (f Frame) Fingerprint() uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, c := range f.Columns {
		_, _ = d.WriteString(c.Name)
		_, _ = d.Write([]byte{0, byte(c.Kind)})
		if c.Kind == Categorical {
			_, _ = d.WriteString(c.Cat)
			_, _ = d.Write([]byte{0})
			continue
		}
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(c.Num))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}
