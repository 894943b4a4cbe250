package nn

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Activation identifies an elementwise transfer function. The zero value is
// reserved for the input layer, which carries no parameters.
type Activation int

const (
	ActivationNone Activation = iota
	ActivationIdentity
	ActivationSigmoid
	ActivationReLU
)

var activationNames = map[Activation]string{
	ActivationNone:     "none",
	ActivationIdentity: "identity",
	ActivationSigmoid:  "sigmoid",
	ActivationReLU:     "relu",
}

func (a Activation) String() string {
	if name, ok := activationNames[a]; ok {
		return name
	}
	return fmt.Sprintf("activation(%d)", int(a))
}

// Valid reports whether a is usable on a parameter layer.
func (a Activation) Valid() bool {
	switch a {
	case ActivationIdentity, ActivationSigmoid, ActivationReLU:
		return true
	default:
		return false
	}
}

// Apply evaluates the activation on a single value.
func (a Activation) Apply(x float64) float64 {
	switch a {
	case ActivationSigmoid:
		return 1.0 / (1.0 + math.Exp(-x))
	case ActivationReLU:
		return math.Max(x, 0)
	default:
		return x
	}
}

// ApplySlice evaluates the activation in place on every element of values.
func (a Activation) ApplySlice(values []float64) {
	for i, v := range values {
		values[i] = a.Apply(v)
	}
}

func (a Activation) MarshalText() ([]byte, error) {
	if _, ok := activationNames[a]; !ok {
		return nil, fmt.Errorf("%w: unknown activation %d", ErrConfiguration, int(a))
	}
	return []byte(a.String()), nil
}

func (a *Activation) UnmarshalText(text []byte) error {
	parsed, err := ParseActivation(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseActivation resolves a configuration name such as "relu" or "sigmoid".
// Names are case-insensitive; "none" and the empty string map to
// ActivationNone.
func ParseActivation(name string) (Activation, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return ActivationNone, nil
	}
	for act, actName := range activationNames {
		if actName == normalized {
			return act, nil
		}
	}
	return ActivationNone, fmt.Errorf("%w: unsupported activation %q (known: %s)",
		ErrConfiguration, name, strings.Join(ListActivations(), ", "))
}

// ListActivations returns the names usable on parameter layers, sorted.
func ListActivations() []string {
	names := make([]string, 0, len(activationNames))
	for act, name := range activationNames {
		if act.Valid() {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
