package hyperparams

import (
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// ErrOutOfDomain is returned for a hyperparameter value outside its declared domain.
var ErrOutOfDomain = errors.New("hyperparameter out of domain")

// Names of the hyperparameters, as they appear in logs, trial records and model manifests.
const (
	KeyLayers          = "layers"
	KeyFirstLayerUnits = "first_layer_units"
	KeyDropout         = "dropout"
	KeyActivation      = "activation"
	KeyRegularization  = "regularization"
	KeyLR              = "lr"
)

// Activation is the non-linearity applied by every hidden layer.
type Activation string

const (
	ReLU    Activation = "relu"
	Tanh    Activation = "tanh"
	Sigmoid Activation = "sigmoid"
	ELU     Activation = "elu"
	SELU    Activation = "selu"
)

// Regularization is the penalty applied to hidden layer kernels and biases.
type Regularization string

const (
	L1               Regularization = "l1"
	L2               Regularization = "l2"
	L1L2             Regularization = "l1_l2"
	NoRegularization Regularization = "none"
)

// DefaultPenalty is the coefficient of the l1 and l2 penalties.
const DefaultPenalty = 0.01

// Factors returns the l1 and l2 coefficients of the regularization.
func (r Regularization) Factors() (l1, l2 float64) {
	switch r {
	case L1:
		return DefaultPenalty, 0
	case L2:
		return 0, DefaultPenalty
	case L1L2:
		return DefaultPenalty, DefaultPenalty
	}
	return 0, 0
}

// Config is one point of the hyperparameter space. It is a value type; copies
// never alias.
type Config struct {
	Layers          int            `mapstructure:"layers" json:"layers"`
	FirstLayerUnits int            `mapstructure:"first_layer_units" json:"first_layer_units"`
	Dropout         float64        `mapstructure:"dropout" json:"dropout"`
	Activation      Activation     `mapstructure:"activation" json:"activation"`
	Regularization  Regularization `mapstructure:"regularization" json:"regularization"`
	LR              float64        `mapstructure:"lr" json:"lr"`
}

// Validate checks c against DefaultSpace.
func (c Config) Validate() error {
	return DefaultSpace().Contains(c)
}

// Widths returns the unit count of every hidden layer. The width halves after
// each layer and never drops below one unit.
func (c Config) Widths() []int {
	widths := make([]int, c.Layers)
	units := c.FirstLayerUnits
	for i := range widths {
		widths[i] = max(units, 1)
		units /= 2
	}
	return widths
}

// Values returns the configuration as a name to value map.
func (c Config) Values() map[string]any {
	return map[string]any{
		KeyLayers:          c.Layers,
		KeyFirstLayerUnits: c.FirstLayerUnits,
		KeyDropout:         c.Dropout,
		KeyActivation:      string(c.Activation),
		KeyRegularization:  string(c.Regularization),
		KeyLR:              c.LR,
	}
}

// Key is a canonical identity of the configuration, used to avoid sampling it twice.
func (c Config) Key() string {
	return fmt.Sprintf("%s=%d,%s=%d,%s=%.1f,%s=%s,%s=%s,%s=%.17g",
		KeyLayers, c.Layers,
		KeyFirstLayerUnits, c.FirstLayerUnits,
		KeyDropout, c.Dropout,
		KeyActivation, c.Activation,
		KeyRegularization, c.Regularization,
		KeyLR, c.LR)
}

func (c Config) String() string {
	return fmt.Sprintf("layers=%d first_layer_units=%d dropout=%.1f activation=%s regularization=%s lr=%.3g",
		c.Layers, c.FirstLayerUnits, c.Dropout, c.Activation, c.Regularization, c.LR)
}

// Decode builds a Config from a name to value map such as one read back from JSON.
// Unknown keys are rejected; the result is validated.
func Decode(values map[string]any) (Config, error) {
	var c Config
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &c,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		ErrorUnset:       true,
	})
	if err != nil {
		return Config{}, fmt.Errorf("creating hyperparameter decoder: %w", err)
	}
	if err := dec.Decode(values); err != nil {
		return Config{}, fmt.Errorf("decoding hyperparameters: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
