package reconstruct

import (
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"

	"github.com/splatmesh/splatmesh/pointcloud"
)

// Params tunes the strategies. Zero values select the defaults.
type Params struct {
	// NormalNeighbors is the neighborhood used to estimate normals when the cloud has none.
	NormalNeighbors int           `json:"normal_neighbors"`
	Poisson         PoissonParams `json:"poisson"`
	BPA             BPAParams     `json:"bpa"`
	Alpha           AlphaParams   `json:"alpha"`
}

// PoissonParams tunes implicit surface extraction.
type PoissonParams struct {
	// Cells bounds the number of grid cells along the longest axis of the cloud.
	Cells int `json:"cells"`
	// Neighbors is the number of points blended into the surface at every sample.
	Neighbors int `json:"neighbors"`
}

// BPAParams tunes ball pivoting. Radii are absolute; when empty they are RadiusFactors times the
// mean point spacing.
type BPAParams struct {
	Radii         []float64 `json:"radii"`
	RadiusFactors []float64 `json:"radius_factors"`
	// MaxCandidates caps the neighbors considered around each seed point.
	MaxCandidates int `json:"max_candidates"`
}

// AlphaParams tunes alpha shapes. Alpha is absolute; when zero it is AlphaFactor times the mean
// point spacing.
type AlphaParams struct {
	Alpha         float64 `json:"alpha"`
	AlphaFactor   float64 `json:"alpha_factor"`
	MaxCandidates int     `json:"max_candidates"`
}

const (
	defaultCells         = 96
	defaultBlend         = 8
	defaultMaxCandidates = 24
	defaultAlphaFactor   = 2
)

var defaultRadiusFactors = []float64{1, 2, 4}

// DecodeParams decodes strategy parameters from a generic attribute map such as a config file
// section. Unknown keys are rejected.
func DecodeParams(attrs map[string]interface{}) (Params, error) {
	var params Params
	if len(attrs) == 0 {
		return params, nil
	}
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &params,
		Metadata:         &md,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return params, err
	}
	if err := decoder.Decode(attrs); err != nil {
		return params, errors.Wrap(err, "invalid reconstruction parameters")
	}
	if len(md.Unused) > 0 {
		sort.Strings(md.Unused)
		return params, errors.Errorf("unknown reconstruction parameters %v", md.Unused)
	}
	return params, params.Validate()
}

// Validate rejects negative sizes.
func (p Params) Validate() error {
	switch {
	case p.NormalNeighbors < 0:
		return errors.New("normal_neighbors must not be negative")
	case p.Poisson.Cells < 0 || p.Poisson.Neighbors < 0:
		return errors.New("poisson cells and neighbors must not be negative")
	case p.BPA.MaxCandidates < 0 || p.Alpha.MaxCandidates < 0:
		return errors.New("max_candidates must not be negative")
	case p.Alpha.Alpha < 0 || p.Alpha.AlphaFactor < 0:
		return errors.New("alpha must not be negative")
	}
	for _, r := range append(append([]float64(nil), p.BPA.Radii...), p.BPA.RadiusFactors...) {
		if r <= 0 {
			return errors.New("ball pivoting radii must be positive")
		}
	}
	return nil
}

func (p Params) withDefaults() Params {
	if p.NormalNeighbors == 0 {
		p.NormalNeighbors = pointcloud.DefaultNormalNeighbors
	}
	if p.Poisson.Cells == 0 {
		p.Poisson.Cells = defaultCells
	}
	if p.Poisson.Neighbors == 0 {
		p.Poisson.Neighbors = defaultBlend
	}
	if len(p.BPA.RadiusFactors) == 0 {
		p.BPA.RadiusFactors = defaultRadiusFactors
	}
	if p.BPA.MaxCandidates == 0 {
		p.BPA.MaxCandidates = defaultMaxCandidates
	}
	if p.Alpha.AlphaFactor == 0 {
		p.Alpha.AlphaFactor = defaultAlphaFactor
	}
	if p.Alpha.MaxCandidates == 0 {
		p.Alpha.MaxCandidates = defaultMaxCandidates
	}
	return p
}
