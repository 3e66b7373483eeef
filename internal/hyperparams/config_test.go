package hyperparams

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		Layers:          2,
		FirstLayerUnits: 128,
		Dropout:         0.2,
		Activation:      ReLU,
		Regularization:  L2,
		LR:              1e-3,
	}
}

func TestWidths(t *testing.T) {
	tests := []struct {
		name   string
		layers int
		units  int
		want   []int
	}{
		{name: "single layer does not halve", layers: 1, units: 2048, want: []int{2048}},
		{name: "three layers of 32", layers: 3, units: 32, want: []int{32, 16, 8}},
		{name: "three layers of 64", layers: 3, units: 64, want: []int{64, 32, 16}},
		{name: "width is clamped to one", layers: 3, units: 2, want: []int{2, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Layers, c.FirstLayerUnits = tt.layers, tt.units
			assert.Equal(t, tt.want, c.Widths())
		})
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{name: "too many layers", mutate: func(c *Config) { c.Layers = 4 }, key: KeyLayers},
		{name: "zero layers", mutate: func(c *Config) { c.Layers = 0 }, key: KeyLayers},
		{name: "units not a choice", mutate: func(c *Config) { c.FirstLayerUnits = 256 }, key: KeyFirstLayerUnits},
		{name: "dropout off step", mutate: func(c *Config) { c.Dropout = 0.25 }, key: KeyDropout},
		{name: "dropout too high", mutate: func(c *Config) { c.Dropout = 0.6 }, key: KeyDropout},
		{name: "unknown activation", mutate: func(c *Config) { c.Activation = "swish" }, key: KeyActivation},
		{name: "unknown regularization", mutate: func(c *Config) { c.Regularization = "l3" }, key: KeyRegularization},
		{name: "lr too small", mutate: func(c *Config) { c.LR = 1e-6 }, key: KeyLR},
		{name: "lr too large", mutate: func(c *Config) { c.LR = 0.1 }, key: KeyLR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			require.ErrorIs(t, err, ErrOutOfDomain)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestSample_StaysInDomainAndIsSeeded(t *testing.T) {
	space := DefaultSpace()
	a := rand.New(rand.NewSource(17))
	b := rand.New(rand.NewSource(17))

	seenLayers := map[int]bool{}
	for i := 0; i < 500; i++ {
		c := space.Sample(a)
		require.NoError(t, c.Validate(), c.String())
		assert.Equal(t, c, space.Sample(b))
		seenLayers[c.Layers] = true
	}
	assert.Len(t, seenLayers, 3)
}

func TestSample_DropoutValuesAreExact(t *testing.T) {
	assert.Equal(t, []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5}, DefaultSpace().Dropout.values())
}

func TestRegularizationFactors(t *testing.T) {
	l1, l2 := L1L2.Factors()
	assert.Equal(t, DefaultPenalty, l1)
	assert.Equal(t, DefaultPenalty, l2)

	l1, l2 = NoRegularization.Factors()
	assert.Zero(t, l1)
	assert.Zero(t, l2)
}

func TestDecode_RoundTripsThroughJSON(t *testing.T) {
	c := validConfig()
	data, err := json.Marshal(c.Values())
	require.NoError(t, err)

	var values map[string]any
	require.NoError(t, json.Unmarshal(data, &values))

	got, err := Decode(values)
	require.NoError(t, err)
	assert.Equal(t, c, got)
	assert.Equal(t, c.Key(), got.Key())
}

func TestDecode_Errors(t *testing.T) {
	values := validConfig().Values()
	values["momentum"] = 0.9
	_, err := Decode(values)
	require.Error(t, err)

	values = validConfig().Values()
	delete(values, KeyLR)
	_, err = Decode(values)
	require.Error(t, err)

	values = validConfig().Values()
	values[KeyActivation] = "swish"
	_, err = Decode(values)
	require.ErrorIs(t, err, ErrOutOfDomain)
}
