package promptgen

import (
	"errors"
	"strings"
	"testing"

	"aesthetisim/core"
)

func TestIntensityFor(t *testing.T) {
	tests := []struct {
		name         string
		intervention core.Intervention
		dose         float64
		want         Intensity
	}{
		{"lips subtle below 2", core.InterventionLips, 1.9, IntensitySubtle},
		{"lips moderate at 2", core.InterventionLips, 2.0, IntensityModerate},
		{"lips moderate below 4", core.InterventionLips, 3.9, IntensityModerate},
		{"lips pronounced at 4", core.InterventionLips, 4.0, IntensityPronounced},
		{"lips pronounced at max", core.InterventionLips, 5.0, IntensityPronounced},

		{"cheeks subtle", core.InterventionCheeks, 2.5, IntensitySubtle},
		{"cheeks moderate at 3", core.InterventionCheeks, 3.0, IntensityModerate},
		{"cheeks pronounced at 6", core.InterventionCheeks, 6.0, IntensityPronounced},

		{"chin subtle", core.InterventionChin, 1.0, IntensitySubtle},
		{"chin moderate", core.InterventionChin, 2.0, IntensityModerate},
		{"chin pronounced", core.InterventionChin, 4.5, IntensityPronounced},

		{"forehead light below 20", core.InterventionForehead, 19, IntensityLight},
		{"forehead moderate at 20", core.InterventionForehead, 20, IntensityModerate},
		{"forehead strong at 35", core.InterventionForehead, 35, IntensityStrong},

		{"crow_feet light", core.InterventionCrowFeet, 9, IntensityLight},
		{"crow_feet moderate at 10", core.InterventionCrowFeet, 10, IntensityModerate},
		{"crow_feet strong at 18", core.InterventionCrowFeet, 18, IntensityStrong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IntensityFor(tt.intervention, tt.dose)
			if err != nil {
				t.Fatalf("IntensityFor: %v", err)
			}
			if got != tt.want {
				t.Errorf("IntensityFor(%s, %v) = %s, want %s", tt.intervention, tt.dose, got, tt.want)
			}
		})
	}
}

func TestIntensityForUnknownIntervention(t *testing.T) {
	if _, err := IntensityFor("nose", 1.0); !errors.Is(err, core.ErrUnsupportedIntervention) {
		t.Errorf("got %v, want ErrUnsupportedIntervention", err)
	}
}

func TestBuildExactPrompts(t *testing.T) {
	tests := []struct {
		intervention core.Intervention
		dose         float64
		want         string
	}{
		{
			core.InterventionLips, 1.0,
			"professional medical aesthetic enhancement, subtle lip enhancement, fuller lips, natural looking, high quality, professional photography, natural lighting",
		},
		{
			core.InterventionCheeks, 7.0,
			"professional medical aesthetic enhancement, pronounced cheek augmentation, defined cheekbones, high quality, professional photography, natural lighting",
		},
		{
			core.InterventionChin, 3.0,
			"professional medical aesthetic enhancement, moderate chin enhancement, improved profile, high quality, professional photography, natural lighting",
		},
		{
			core.InterventionForehead, 40,
			"professional medical aesthetic enhancement, strong forehead smoothing, reduced wrinkles, high quality, professional photography, natural lighting",
		},
		{
			core.InterventionCrowFeet, 12,
			"professional medical aesthetic enhancement, moderate eye area smoothing, reduced crow's feet, high quality, professional photography, natural lighting",
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.intervention), func(t *testing.T) {
			got, err := Build(tt.intervention, tt.dose)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if got != tt.want {
				t.Errorf("Build(%s, %v)\n got:  %q\n want: %q", tt.intervention, tt.dose, got, tt.want)
			}
		})
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	first, err := Build(core.InterventionLips, 2.5)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, _ := Build(core.InterventionLips, 2.5)
		if again != first {
			t.Fatalf("prompt changed between calls: %q vs %q", first, again)
		}
	}
}

func TestBuildPair(t *testing.T) {
	pos, neg, err := BuildPair(core.InterventionForehead, 15)
	if err != nil {
		t.Fatalf("BuildPair: %v", err)
	}
	if neg != NegativePrompt {
		t.Errorf("negative = %q", neg)
	}
	if !strings.Contains(pos, "light forehead smoothing") {
		t.Errorf("positive = %q", pos)
	}
}

func TestBuildUnknownIntervention(t *testing.T) {
	if _, err := Build("jawline", 2.0); !errors.Is(err, core.ErrUnsupportedIntervention) {
		t.Errorf("got %v, want ErrUnsupportedIntervention", err)
	}
	if _, _, err := BuildPair("jawline", 2.0); err == nil {
		t.Error("BuildPair should propagate the error")
	}
}
