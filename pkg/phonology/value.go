package phonology

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is the tri-state value of a feature for a phoneme.
// The zero value is Unspecified.
type Value uint8

const (
	Unspecified Value = iota
	Negative
	Positive
)

// ParseValue decodes the numeric table encoding: 1, 0 or -1.
func ParseValue(s string) (Value, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return Unspecified, fmt.Errorf("invalid feature value %q", s)
	}
	switch n {
	case 1:
		return Positive, nil
	case 0:
		return Negative, nil
	case -1:
		return Unspecified, nil
	}
	return Unspecified, fmt.Errorf("feature value %d out of range [-1, 1]", n)
}

// Specified reports whether v is Positive or Negative.
func (v Value) Specified() bool { return v == Positive || v == Negative }

// Encode returns the numeric table encoding of v.
func (v Value) Encode() string {
	switch v {
	case Positive:
		return "1"
	case Negative:
		return "0"
	}
	return "-1"
}

func (v Value) String() string {
	switch v {
	case Positive:
		return "+"
	case Negative:
		return "-"
	}
	return "0"
}

// Polarity is the sign of a feature specification: '+' or '-'.
type Polarity byte

const (
	Plus  Polarity = '+'
	Minus Polarity = '-'
)

// ParsePolarity accepts "+", "-" and the Unicode minus sign.
func ParsePolarity(s string) (Polarity, error) {
	switch strings.TrimSpace(s) {
	case "+":
		return Plus, nil
	case "-", "−":
		return Minus, nil
	}
	return 0, fmt.Errorf("invalid polarity %q, want + or -", s)
}

// PolarityOf returns the polarity describing v. Anything but Positive is Minus.
func PolarityOf(v Value) Polarity {
	if v == Positive {
		return Plus
	}
	return Minus
}

// Value returns the feature value a specification with this polarity selects.
func (p Polarity) Value() Value {
	if p == Plus {
		return Positive
	}
	return Negative
}

func (p Polarity) String() string { return string(rune(p)) }

// FeatureSpec pairs a feature name with a polarity, e.g. [nasal +].
type FeatureSpec struct {
	Feature  string
	Polarity Polarity
}

// ParseFeatureSpec parses "nasal=+", "nasal+" or "+nasal".
func ParseFeatureSpec(s string) (FeatureSpec, error) {
	s = strings.TrimSpace(s)
	if name, sign, ok := strings.Cut(s, "="); ok {
		p, err := ParsePolarity(sign)
		if err != nil {
			return FeatureSpec{}, err
		}
		return FeatureSpec{Feature: strings.TrimSpace(name), Polarity: p}, nil
	}
	for _, sign := range []string{"+", "-", "−"} {
		if rest, ok := strings.CutPrefix(s, sign); ok && rest != "" {
			p, _ := ParsePolarity(sign)
			return FeatureSpec{Feature: rest, Polarity: p}, nil
		}
		if rest, ok := strings.CutSuffix(s, sign); ok && rest != "" {
			p, _ := ParsePolarity(sign)
			return FeatureSpec{Feature: rest, Polarity: p}, nil
		}
	}
	return FeatureSpec{}, fmt.Errorf("invalid feature spec %q, want name=+ or name=-", s)
}

func (fs FeatureSpec) String() string {
	return fs.Feature + " " + fs.Polarity.String()
}
