package core

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Intervention identifies a supported aesthetic procedure.
// The set is closed: dose bounds and prompt wording are defined per
// intervention, so adding a new one is a code change, not configuration.
type Intervention string

const (
	InterventionLips     Intervention = "lips"
	InterventionCheeks   Intervention = "cheeks"
	InterventionChin     Intervention = "chin"
	InterventionForehead Intervention = "forehead"
	InterventionCrowFeet Intervention = "crow_feet"
)

// InterventionInfo describes one catalog entry: display metadata plus the
// dose bounds enforced before a simulation record is ever persisted.
type InterventionInfo struct {
	Name        string  `yaml:"name" json:"name"`
	MinDose     float64 `yaml:"-" json:"min_dose"`
	MaxDose     float64 `yaml:"-" json:"max_dose"`
	Unit        string  `yaml:"-" json:"unit"`
	Description string  `yaml:"description" json:"description"`
}

// Sentinel errors for catalog validation.
var (
	ErrUnsupportedIntervention = fmt.Errorf("core: unsupported intervention type")
	ErrDoseOutOfRange          = fmt.Errorf("core: dose out of range")
)

// interventionCatalog is the authoritative catalog. Dose bounds are
// clinical constants and are not overridable at runtime; display names
// and descriptions may be replaced via LoadCatalogOverrides.
var interventionCatalog = map[Intervention]InterventionInfo{
	InterventionLips: {
		Name:        "Lips",
		MinDose:     0.5,
		MaxDose:     5.0,
		Unit:        "ml",
		Description: "Lip augmentation and redefinition",
	},
	InterventionCheeks: {
		Name:        "Cheeks",
		MinDose:     1.0,
		MaxDose:     8.0,
		Unit:        "ml",
		Description: "Cheekbone redefinition",
	},
	InterventionChin: {
		Name:        "Chin",
		MinDose:     1.0,
		MaxDose:     6.0,
		Unit:        "ml",
		Description: "Chin remodeling",
	},
	InterventionForehead: {
		Name:        "Forehead",
		MinDose:     10,
		MaxDose:     50,
		Unit:        "units",
		Description: "Forehead wrinkle treatment",
	},
	InterventionCrowFeet: {
		Name:        "Crow's feet",
		MinDose:     5,
		MaxDose:     25,
		Unit:        "units",
		Description: "Crow's feet wrinkle treatment",
	},
}

// Catalog returns a copy of the intervention catalog.
// Callers may mutate the returned map freely.
func Catalog() map[Intervention]InterventionInfo {
	out := make(map[Intervention]InterventionInfo, len(interventionCatalog))
	for k, v := range interventionCatalog {
		out[k] = v
	}
	return out
}

// CatalogKeys returns the supported intervention types in stable order.
func CatalogKeys() []Intervention {
	keys := make([]Intervention, 0, len(interventionCatalog))
	for k := range interventionCatalog {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// LookupIntervention returns the catalog entry for the given intervention.
// Returns ErrUnsupportedIntervention if the type is not in the catalog.
func LookupIntervention(t Intervention) (InterventionInfo, error) {
	info, ok := interventionCatalog[t]
	if !ok {
		return InterventionInfo{}, fmt.Errorf("%w: %q", ErrUnsupportedIntervention, t)
	}
	return info, nil
}

// ValidateDose checks that dose lies within the catalog bounds for the
// intervention. This runs before any record is created or any generation
// is scheduled; a failure here never touches the state machine.
func ValidateDose(t Intervention, dose float64) error {
	info, err := LookupIntervention(t)
	if err != nil {
		return err
	}
	if dose < info.MinDose || dose > info.MaxDose {
		return fmt.Errorf("%w: %s dose %.2f must be between %.2f and %.2f %s",
			ErrDoseOutOfRange, t, dose, info.MinDose, info.MaxDose, info.Unit)
	}
	return nil
}

// catalogOverrideFile is the YAML shape accepted by LoadCatalogOverrides.
// Only display fields can be overridden; bounds and units are fixed.
type catalogOverrideFile struct {
	Interventions map[string]InterventionInfo `yaml:"interventions"`
}

// LoadCatalogOverrides replaces display names and descriptions from a YAML
// file, typically used for localisation. Unknown intervention keys are
// rejected so a typo cannot silently create a dangling entry.
func LoadCatalogOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("core: failed to read catalog overrides: %w", err)
	}

	var file catalogOverrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("core: failed to parse catalog overrides: %w", err)
	}

	for key, override := range file.Interventions {
		t := Intervention(key)
		info, ok := interventionCatalog[t]
		if !ok {
			return fmt.Errorf("%w: %q in %s", ErrUnsupportedIntervention, key, path)
		}
		if override.Name != "" {
			info.Name = override.Name
		}
		if override.Description != "" {
			info.Description = override.Description
		}
		interventionCatalog[t] = info
	}

	return nil
}
