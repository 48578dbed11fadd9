// Package promptgen builds the text conditioning for aesthetic simulation
// generations. Prompt assembly is deterministic: the same intervention and
// dose always produce the same prompt, which together with a fixed seed
// makes generations reproducible.
package promptgen

import (
	"fmt"

	"aesthetisim/core"
)

// NegativePrompt is sent with every generation to steer the model away
// from artificial-looking output.
const NegativePrompt = "unrealistic, fake, artificial, exaggerated, cartoon, distorted, blurry, low quality"

const (
	promptPrefix = "professional medical aesthetic enhancement, "
	promptSuffix = ", high quality, professional photography, natural lighting"
)

// Intensity is the qualitative strength band a dose maps into.
type Intensity string

// Filler interventions use subtle/moderate/pronounced; toxin interventions
// use light/moderate/strong, matching clinical terminology.
const (
	IntensitySubtle     Intensity = "subtle"
	IntensityModerate   Intensity = "moderate"
	IntensityPronounced Intensity = "pronounced"
	IntensityLight      Intensity = "light"
	IntensityStrong     Intensity = "strong"
)

// doseBand maps a dose to an intensity using two thresholds: below the
// first gives lo, below the second gives mid, otherwise hi.
type doseBand struct {
	t1, t2     float64
	lo, mi, hi Intensity
}

func (b doseBand) intensity(dose float64) Intensity {
	switch {
	case dose < b.t1:
		return b.lo
	case dose < b.t2:
		return b.mi
	default:
		return b.hi
	}
}

// Band thresholds per intervention. Filler doses are in ml, toxin doses in
// units, which is why the forehead and crow_feet thresholds look coarse.
var doseBands = map[core.Intervention]doseBand{
	core.InterventionLips:     {2, 4, IntensitySubtle, IntensityModerate, IntensityPronounced},
	core.InterventionCheeks:   {3, 6, IntensitySubtle, IntensityModerate, IntensityPronounced},
	core.InterventionChin:     {2, 4, IntensitySubtle, IntensityModerate, IntensityPronounced},
	core.InterventionForehead: {20, 35, IntensityLight, IntensityModerate, IntensityStrong},
	core.InterventionCrowFeet: {10, 18, IntensityLight, IntensityModerate, IntensityStrong},
}

// Clause templates per intervention. %s receives the intensity.
var clauseTemplates = map[core.Intervention]string{
	core.InterventionLips:     "%s lip enhancement, fuller lips, natural looking",
	core.InterventionCheeks:   "%s cheek augmentation, defined cheekbones",
	core.InterventionChin:     "%s chin enhancement, improved profile",
	core.InterventionForehead: "%s forehead smoothing, reduced wrinkles",
	core.InterventionCrowFeet: "%s eye area smoothing, reduced crow's feet",
}

// IntensityFor returns the intensity band for the given intervention and
// dose. Returns core.ErrUnsupportedIntervention for unknown types.
func IntensityFor(t core.Intervention, dose float64) (Intensity, error) {
	band, ok := doseBands[t]
	if !ok {
		return "", fmt.Errorf("%w: %q", core.ErrUnsupportedIntervention, t)
	}
	return band.intensity(dose), nil
}

// Build assembles the positive prompt for an intervention at a dose.
// The dose is assumed to have passed catalog validation already; out of
// range doses still map into the nearest band rather than failing here.
func Build(t core.Intervention, dose float64) (string, error) {
	intensity, err := IntensityFor(t, dose)
	if err != nil {
		return "", err
	}

	template, ok := clauseTemplates[t]
	if !ok {
		return "", fmt.Errorf("%w: %q", core.ErrUnsupportedIntervention, t)
	}

	clause := fmt.Sprintf(template, intensity)
	return promptPrefix + clause + promptSuffix, nil
}

// BuildPair returns both the positive and negative prompts for a
// generation request.
func BuildPair(t core.Intervention, dose float64) (positive, negative string, err error) {
	positive, err = Build(t, dose)
	if err != nil {
		return "", "", err
	}
	return positive, NegativePrompt, nil
}
