// Package photometry implements the forward lighting model for a point light
// over a flat patch grid, and the conversions between linear intensities and
// displayable 8-bit gray values.
package photometry

import "math"

// Falloff returns cos(alpha)^3 for a ground point at distance dist from the
// light's ground projection, with alpha = atan(dist / height).
// The cube folds inverse-square falloff and oblique incidence into one term.
func Falloff(dist, height float64) float64 {
	if height <= 0 {
		return 0
	}
	c := math.Cos(math.Atan(dist / height))
	return c * c * c
}

// Intensity returns cos(alpha)^3 * L * albedo. A light at ground level gives 0.
func Intensity(dist, height, luminosity, albedo float64) float64 {
	return Falloff(dist, height) * luminosity * albedo
}

// Composite combines base reflectance, light intensity and noise into a
// pixel value clamped to [0, 1]
func Composite(reflectance, intensity, noise float64) float64 {
	return Clamp(reflectance*intensity+noise, 0, 1)
}

// Clamp limits v to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}
