package photometry

import "math"

const (
	srgbA = 0.055

	// linearThreshold is where the linear segment of the encoding ends
	linearThreshold = 0.0031308

	// srgbThreshold is the encoded value (11/255) at or below which decoding
	// uses the linear segment
	srgbThreshold = 11.0 / 255.0
)

// LinearToSRGB gamma-encodes a linear intensity in [0, 1]
func LinearToSRGB(x float64) float64 {
	if x <= linearThreshold {
		return 12.92 * x
	}
	return (1+srgbA)*math.Pow(x, 1/2.4) - srgbA
}

// SRGBToLinear decodes a gamma-encoded value in [0, 1]
func SRGBToLinear(v float64) float64 {
	if v <= srgbThreshold {
		return v / 12.92
	}
	return math.Pow((v+srgbA)/(1+srgbA), 2.4)
}
