package parameter

import (
	"math"

	"github.com/danmuck/paramctl/internal/description"
)

const TagLinearAdaptation = "LinearAdaptation"

// LinearAdaptation maps raw integers to user values:
//
//	user = (raw + Offset) * SlopeDenominator / SlopeNumerator
//	raw  = user * SlopeNumerator / SlopeDenominator - Offset
//
// The offset is applied on the raw side of the slope in both directions.
type LinearAdaptation struct {
	SlopeNumerator   float64
	SlopeDenominator float64
	Offset           int64
}

// NewLinearAdaptation validates the slope. A zero numerator or denominator is
// a configuration error.
func NewLinearAdaptation(num, den float64, offset int64) (*LinearAdaptation, error) {
	if num == 0 || den == 0 {
		return nil, configErr(TagLinearAdaptation, nil, "slope numerator and denominator must be non-zero (got %g/%g)", num, den)
	}
	return &LinearAdaptation{SlopeNumerator: num, SlopeDenominator: den, Offset: offset}, nil
}

func loadLinearAdaptation(n description.Node) (*LinearAdaptation, error) {
	num, err := description.FloatOr(n, "SlopeNumerator", 1)
	if err != nil {
		return nil, configErr(n.Path(), err, "bad SlopeNumerator")
	}
	den, err := description.FloatOr(n, "SlopeDenominator", 1)
	if err != nil {
		return nil, configErr(n.Path(), err, "bad SlopeDenominator")
	}
	offset, err := description.IntOr(n, "Offset", 0)
	if err != nil {
		return nil, configErr(n.Path(), err, "bad Offset")
	}
	a, err := NewLinearAdaptation(num, den, offset)
	if err != nil {
		return nil, configErr(n.Path(), nil, "slope numerator and denominator must be non-zero (got %g/%g)", num, den)
	}
	return a, nil
}

// ToUserValue converts a raw integer to its user facing value.
func (a *LinearAdaptation) ToUserValue(raw int64) float64 {
	if a == nil {
		return float64(raw)
	}
	return float64(raw+a.Offset) * a.SlopeDenominator / a.SlopeNumerator
}

// FromUserValue converts a user value back to a raw integer, truncating
// toward zero.
func (a *LinearAdaptation) FromUserValue(user float64) int64 {
	if a == nil {
		return int64(user)
	}
	v := user*a.SlopeNumerator/a.SlopeDenominator - float64(a.Offset)
	// absorb floating point noise before truncating
	if r := math.Round(v); math.Abs(v-r) < 1e-9 {
		v = r
	}
	return int64(v)
}

func (a *LinearAdaptation) toDescription() *description.Element {
	return description.NewElement(TagLinearAdaptation).
		SetFloat("SlopeNumerator", a.SlopeNumerator).
		SetFloat("SlopeDenominator", a.SlopeDenominator).
		SetInt("Offset", a.Offset)
}
