package suitability

import (
	"fmt"
	"math"
	"strings"

	"acao/entities"
)

const phTolerance = 1.0

// Eligible applies the hard agronomic filter. The reason is empty when the crop passes.
func Eligible(f entities.Field, c entities.Crop) (bool, string) {
	if c.IsPaddy && f.LandUse != entities.LandUsePaddy {
		return false, "paddy crop on non-paddy land"
	}
	if c.ECMax > 0 && f.SoilEC > c.ECMax {
		return false, fmt.Sprintf("soil EC %.2f above crop limit %.2f", f.SoilEC, c.ECMax)
	}
	if d := phDistance(f.SoilPH, c); d > phTolerance {
		return false, fmt.Sprintf("soil pH %.1f is %.1f outside crop range", f.SoilPH, d)
	}
	return true, ""
}

// phDistance is how far pH lies outside the crop range; zero inside or with no range.
func phDistance(ph float64, c entities.Crop) float64 {
	if c.PHMin == 0 && c.PHMax == 0 {
		return 0
	}
	if ph < c.PHMin {
		return c.PHMin - ph
	}
	if c.PHMax > 0 && ph > c.PHMax {
		return ph - c.PHMax
	}
	return 0
}

func textureScore(f entities.Field, c entities.Crop) float64 {
	if len(c.SoilTextures) == 0 {
		return 1
	}
	for _, t := range c.SoilTextures {
		if strings.EqualFold(t, f.SoilTexture) {
			return 1
		}
	}
	return 0.4
}

func phScore(f entities.Field, c entities.Crop) float64 {
	return math.Max(0, 1-phDistance(f.SoilPH, c)/1.5)
}

func salinityScore(f entities.Field, c entities.Crop) float64 {
	if c.ECMax <= 0 {
		return 1
	}
	return 1 - 0.5*math.Min(1, f.SoilEC/c.ECMax)
}

// SoilFit is the mean of the texture, pH and salinity match scores, in [0,1].
func SoilFit(f entities.Field, c entities.Crop) float64 {
	return (textureScore(f, c) + phScore(f, c) + salinityScore(f, c)) / 3
}
