package pointcloud

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
)

// SHC0 is the zeroth-order spherical harmonic basis constant, 1 / (2 * sqrt(pi)).
const SHC0 = 0.28209479177387814

// SH holds the DC (zeroth order) spherical-harmonic color coefficients of one point, stored in
// PLY files as the f_dc_0, f_dc_1 and f_dc_2 vertex properties.
type SH struct {
	DC0, DC1, DC2 float64
}

// SHToRGB converts DC coefficients to a color with every channel clipped to [0, 1].
func SHToRGB(sh SH) colorful.Color {
	return colorful.Color{
		R: shChannel(sh.DC0),
		G: shChannel(sh.DC1),
		B: shChannel(sh.DC2),
	}.Clamped()
}

func shChannel(dc float64) float64 {
	if math.IsNaN(dc) {
		return 0.5
	}
	return 0.5 + SHC0*dc
}

// ResolveColors produces a cloud whose colors are usable for meshing. A cloud that already has
// colors is returned as is. Otherwise colors are derived from SH coefficients when present. The
// boolean reports whether the returned cloud has colors. The input is never modified.
func ResolveColors(cloud *PointCloud) (*PointCloud, bool) {
	if cloud.MetaData().HasColor {
		return cloud, true
	}
	if !cloud.MetaData().HasSH {
		return cloud, false
	}
	colors := make([]colorful.Color, len(cloud.sh))
	for i, sh := range cloud.sh {
		colors[i] = SHToRGB(sh)
	}
	resolved, err := cloud.WithColors(colors)
	if err != nil {
		// lengths are equal by construction
		panic(err)
	}
	return resolved, true
}

// RGB255 converts a color to clamped 8-bit channels.
func RGB255(c colorful.Color) (uint8, uint8, uint8) {
	return c.Clamped().RGB255()
}

// ColorFromRGB255 converts 8-bit channels to a color.
func ColorFromRGB255(r, g, b uint8) colorful.Color {
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}
