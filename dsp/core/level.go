package core

import "math"

// DBToLinear converts an amplitude level in dB to a linear factor.
func DBToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}

// LinearToDB converts a linear amplitude to dB. Zero maps to -Inf and
// negative input to NaN.
func LinearToDB(linear float64) float64 {
	return toDB(linear, 20)
}

// LinearPowerToDB converts a linear power to dB.
func LinearPowerToDB(power float64) float64 {
	return toDB(power, 10)
}

func toDB(v, scale float64) float64 {
	switch {
	case v < 0:
		return math.NaN()
	case v == 0:
		return math.Inf(-1)
	default:
		return scale * math.Log10(v)
	}
}
