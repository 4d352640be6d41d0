package strain

// Params collects every tunable the strain formulas and the engine
// depend on. Callers pass Params explicitly instead of reading
// package-level constants so tests can vary them deterministically.
type Params struct {
	// BaseAmplitude is the per-access amplitude contribution used by
	// the decay formula.
	BaseAmplitude float64 `yaml:"base_amplitude"`

	// DecayRate is the per-hour amplitude multiplier, < 1.0 so that
	// amplitude decays toward zero without access.
	DecayRate float64 `yaml:"decay_rate"`

	// DefaultResistance is the resistance assigned to new entities
	// and relationships.
	DefaultResistance float64 `yaml:"default_resistance"`

	// MaxFrequency and MaxConnections normalize the resistance formula.
	MaxFrequency   float64 `yaml:"max_frequency"`
	MaxConnections float64 `yaml:"max_connections"`

	// FrequencyNorm normalizes the frequency component of confidence
	// scores: score = clamp(frequency / FrequencyNorm).
	FrequencyNorm float64 `yaml:"frequency_norm"`

	// Confidence score weights. They are applied as a weighted average
	// and need not sum to one.
	AmplitudeWeight  float64 `yaml:"amplitude_weight"`
	ResistanceWeight float64 `yaml:"resistance_weight"`
	FrequencyWeight  float64 `yaml:"frequency_weight"`

	// Query thresholds used by strain summaries.
	HighStrainThreshold float64 `yaml:"high_strain_threshold"`
	LowStrainThreshold  float64 `yaml:"low_strain_threshold"`

	// DissonanceThreshold is the default mismatch ratio below which
	// detected dissonance is reported as zero.
	DissonanceThreshold float64 `yaml:"dissonance_threshold"`

	// MaxPropagationDepth bounds strain propagation passes that do not
	// request an explicit depth.
	MaxPropagationDepth int `yaml:"max_propagation_depth"`
}

// DefaultParams returns the stock tuning.
func DefaultParams() Params {
	return Params{
		BaseAmplitude:       0.1,
		DecayRate:           0.95,
		DefaultResistance:   0.5,
		MaxFrequency:        100,
		MaxConnections:      50,
		FrequencyNorm:       10,
		AmplitudeWeight:     0.4,
		ResistanceWeight:    0.3,
		FrequencyWeight:     0.3,
		HighStrainThreshold: 0.7,
		LowStrainThreshold:  0.3,
		DissonanceThreshold: 0.5,
		MaxPropagationDepth: 3,
	}
}
