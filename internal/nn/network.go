package nn

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// LayerSpec describes one layer of a feedforward topology. The input layer
// leaves Activation at ActivationNone.
type LayerSpec struct {
	Size       int        `json:"size"`
	Activation Activation `json:"activation,omitempty"`
}

// Topology is an ordered list of layers, input first.
type Topology []LayerSpec

func (t Topology) Clone() Topology {
	return append(Topology(nil), t...)
}

func (t Topology) Validate() error {
	if len(t) < 2 {
		return fmt.Errorf("%w: topology needs at least 2 layers, got %d", ErrConfiguration, len(t))
	}
	for i, layer := range t {
		if layer.Size <= 0 {
			return fmt.Errorf("%w: layer %d size must be > 0, got %d", ErrConfiguration, i, layer.Size)
		}
		if i == 0 {
			if layer.Activation != ActivationNone {
				return fmt.Errorf("%w: input layer cannot carry an activation (%s)", ErrConfiguration, layer.Activation)
			}
			continue
		}
		if !layer.Activation.Valid() {
			return fmt.Errorf("%w: layer %d requires an activation", ErrConfiguration, i)
		}
	}
	return nil
}

// InputWidth is the size of the first layer.
func (t Topology) InputWidth() int {
	if len(t) == 0 {
		return 0
	}
	return t[0].Size
}

// OutputWidth is the size of the last layer.
func (t Topology) OutputWidth() int {
	if len(t) == 0 {
		return 0
	}
	return t[len(t)-1].Size
}

func (t Topology) String() string {
	parts := make([]string, len(t))
	for i, layer := range t {
		if layer.Activation == ActivationNone {
			parts[i] = strconv.Itoa(layer.Size)
			continue
		}
		parts[i] = fmt.Sprintf("%d:%s", layer.Size, layer.Activation)
	}
	return strings.Join(parts, ", ")
}

// ParseTopology reads the compact "7, 5:relu, 1:sigmoid" form used in
// configuration files. The result is validated.
func ParseTopology(text string) (Topology, error) {
	fields := strings.Split(text, ",")
	topology := make(Topology, 0, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		sizeText, actText, _ := strings.Cut(field, ":")
		size, err := strconv.Atoi(strings.TrimSpace(sizeText))
		if err != nil {
			return nil, fmt.Errorf("%w: layer %q: %v", ErrConfiguration, field, err)
		}
		act, err := ParseActivation(actText)
		if err != nil {
			return nil, err
		}
		topology = append(topology, LayerSpec{Size: size, Activation: act})
	}
	if err := topology.Validate(); err != nil {
		return nil, err
	}
	return topology, nil
}

// ParameterCount is the genotype length for t: every bias followed by every
// weight. It does not validate t.
func ParameterCount(t Topology) int {
	total := 0
	for i := 1; i < len(t); i++ {
		total += t[i].Size + t[i].Size*t[i-1].Size
	}
	return total
}

// Network is a fixed-topology feedforward evaluator. Layer i owns a bias
// vector of size[i] and a size[i] x size[i-1] weight matrix.
type Network struct {
	topology Topology
	biases   []*mat.VecDense
	weights  []*mat.Dense
}

// NewNetwork allocates a network for topology with every parameter drawn
// uniformly from [-1, 1). Biases are drawn before weights, layer by layer.
func NewNetwork(topology Topology, rng *rand.Rand) (*Network, error) {
	if err := topology.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: random source is required", ErrConfiguration)
	}

	n := &Network{
		topology: topology.Clone(),
		biases:   make([]*mat.VecDense, 0, len(topology)-1),
		weights:  make([]*mat.Dense, 0, len(topology)-1),
	}
	for i := 1; i < len(topology); i++ {
		n.biases = append(n.biases, mat.NewVecDense(topology[i].Size, uniform(rng, topology[i].Size)))
	}
	for i := 1; i < len(topology); i++ {
		rows, cols := topology[i].Size, topology[i-1].Size
		n.weights = append(n.weights, mat.NewDense(rows, cols, uniform(rng, rows*cols)))
	}
	return n, nil
}

func uniform(rng *rand.Rand, size int) []float64 {
	values := make([]float64, size)
	for i := range values {
		values[i] = rng.Float64()*2 - 1
	}
	return values
}

func (n *Network) Topology() Topology {
	return n.topology.Clone()
}

func (n *Network) InputWidth() int {
	return n.topology.InputWidth()
}

func (n *Network) OutputWidth() int {
	return n.topology.OutputWidth()
}

func (n *Network) ParameterCount() int {
	return ParameterCount(n.topology)
}

// Predict runs the forward pass. Each parameter layer computes
// act(W·x + b); the last layer's activations are returned.
func (n *Network) Predict(input []float64) ([]float64, error) {
	if len(input) != n.InputWidth() {
		return nil, fmt.Errorf("%w: input has %d values, network expects %d",
			ErrDimensionMismatch, len(input), n.InputWidth())
	}

	x := mat.NewVecDense(len(input), append([]float64(nil), input...))
	for i, w := range n.weights {
		rows, _ := w.Dims()
		z := mat.NewVecDense(rows, nil)
		z.MulVec(w, x)
		z.AddVec(z, n.biases[i])
		n.topology[i+1].Activation.ApplySlice(z.RawVector().Data)
		x = z
	}
	return append([]float64(nil), x.RawVector().Data...), nil
}

// Serialize flattens the parameters: all biases in layer order, then all
// weights in layer order, row-major.
func (n *Network) Serialize() []float64 {
	out := make([]float64, 0, n.ParameterCount())
	for _, b := range n.biases {
		out = append(out, b.RawVector().Data...)
	}
	for _, w := range n.weights {
		out = append(out, w.RawMatrix().Data...)
	}
	return out
}

// Deserialize overwrites every parameter from values, which must be laid out
// as Serialize produces. A length mismatch returns ErrDimensionMismatch and a
// non-finite value returns ErrConfiguration; in both cases the network is
// left untouched.
func (n *Network) Deserialize(values []float64) error {
	if want := n.ParameterCount(); len(values) != want {
		return fmt.Errorf("%w: genotype has %d values, network expects %d",
			ErrDimensionMismatch, len(values), want)
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: parameter %d is not finite", ErrConfiguration, i)
		}
	}

	offset := 0
	for _, b := range n.biases {
		data := b.RawVector().Data
		offset += copy(data, values[offset:offset+len(data)])
	}
	for _, w := range n.weights {
		data := w.RawMatrix().Data
		offset += copy(data, values[offset:offset+len(data)])
	}
	return nil
}

// Load builds a network for topology whose parameters come from genotype
// instead of the random initializer.
func Load(topology Topology, genotype []float64) (*Network, error) {
	if err := topology.Validate(); err != nil {
		return nil, err
	}
	if want := ParameterCount(topology); len(genotype) != want {
		return nil, fmt.Errorf("%w: genotype has %d values, topology expects %d",
			ErrDimensionMismatch, len(genotype), want)
	}

	n := &Network{
		topology: topology.Clone(),
		biases:   make([]*mat.VecDense, 0, len(topology)-1),
		weights:  make([]*mat.Dense, 0, len(topology)-1),
	}
	for i := 1; i < len(topology); i++ {
		n.biases = append(n.biases, mat.NewVecDense(topology[i].Size, nil))
	}
	for i := 1; i < len(topology); i++ {
		n.weights = append(n.weights, mat.NewDense(topology[i].Size, topology[i-1].Size, nil))
	}
	if err := n.Deserialize(genotype); err != nil {
		return nil, err
	}
	return n, nil
}
