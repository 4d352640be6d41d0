// Package strain implements the strain data model and its pure math:
// amplitude decay, resistance, inter-node flow, interference, and
// dissonance scoring. Nothing in this package holds state; every
// function is a plain computation over its inputs.
package strain

import (
	"math"
	"time"
)

// Vector is a 3-component direction hint attached to strain. It is not
// required to be unit length; Normalize is applied where it matters.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Dot returns the dot product of two vectors.
func (v Vector) Dot(o Vector) float64 {
	return v.X*o.X + v.Y*o.Y + v.Z*o.Z
}

// Length returns the Euclidean length of the vector.
func (v Vector) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Normalize returns a unit-length copy of the vector. The zero vector
// normalizes to itself.
func (v Vector) Normalize() Vector {
	l := v.Length()
	if l == 0 {
		return Vector{}
	}
	return Vector{X: v.X / l, Y: v.Y / l, Z: v.Z / l}
}

// Data is the strain tuple carried by every entity and relationship.
// Amplitude and Resistance are always clamped into [0,1] after any
// write; Frequency never decreases except on explicit reset.
type Data struct {
	Amplitude    float64   `json:"amplitude"`
	Resistance   float64   `json:"resistance"`
	Frequency    int       `json:"frequency"`
	Direction    Vector    `json:"direction"`
	LastAccessed time.Time `json:"last_accessed"`
	AccessCount  int       `json:"access_count"`
}

// NewData returns the default strain tuple for a freshly created
// entity or relationship: zero amplitude, the configured default
// resistance, zero frequency.
func NewData(defaultResistance float64) Data {
	return Data{
		Amplitude:    0.0,
		Resistance:   Clamp01(defaultResistance),
		Frequency:    0,
		LastAccessed: time.Now().UTC(),
	}
}

// Clamped returns a copy with Amplitude and Resistance forced into [0,1].
func (d Data) Clamped() Data {
	d.Amplitude = Clamp01(d.Amplitude)
	d.Resistance = Clamp01(d.Resistance)
	if d.Frequency < 0 {
		d.Frequency = 0
	}
	if d.AccessCount < 0 {
		d.AccessCount = 0
	}
	return d
}

// Flow is the derived strain transfer between two nodes. It is
// computed on demand and never persisted.
type Flow struct {
	Amount    float64 `json:"flow_amount"`
	Direction Vector  `json:"direction"`
}

// Clamp01 clamps x into [0.0, 1.0]. NaN clamps to 0.
func Clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
