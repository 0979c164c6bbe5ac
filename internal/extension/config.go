package extension

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/packwork/internal/core/hooks"
	"github.com/zeusync/packwork/internal/core/patch"
)

var ErrInvalidConfig = errors.New("invalid extension config")

// Config is the persisted extension configuration. It is read once, at
// startup generation.
type Config struct {
	// Excluded lists base types whose packed form is removed after
	// generation, in the order they are applied.
	Excluded []string `json:"excluded,omitempty" yaml:"excluded,omitempty"`
	// Redirect turns job redirection on.
	Redirect bool `json:"redirect" yaml:"redirect"`
	// ReinstallDelay is the tick gap of each detach and reattach phase
	// after an install.
	ReinstallDelay uint64 `json:"reinstall_delay" yaml:"reinstall_delay"`
	// ReservationCount replaces the host's hard-coded reservation literal.
	ReservationCount int32        `json:"reservation_count" yaml:"reservation_count"`
	Patch            PatchTargets `json:"patch" yaml:"patch"`
	LogLevel         string       `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// PatchTargets names the host members the rewrite rules look for.
type PatchTargets struct {
	PlaceCall         string `json:"place_call" yaml:"place_call"`
	WrapperCall       string `json:"wrapper_call" yaml:"wrapper_call"`
	ConversionCall    string `json:"conversion_call" yaml:"conversion_call"`
	CategoryField     string `json:"category_field" yaml:"category_field"`
	CategoryConst     int32  `json:"category_const" yaml:"category_const"`
	CategoryPredicate string `json:"category_predicate" yaml:"category_predicate"`
}

// DefaultConfig returns the shipped defaults.
func DefaultConfig() Config {
	return Config{
		Redirect:         true,
		ReinstallDelay:   500,
		ReservationCount: 2,
		Patch: PatchTargets{
			PlaceCall:         "GenConstruct::PlaceBlueprintForBuild",
			WrapperCall:       "Packwork.Redirect::PlaceBlueprintOrInstall",
			ConversionCall:    "GenMath::RoundRandom",
			CategoryField:     "ThingDef::designationCategory",
			CategoryConst:     3,
			CategoryPredicate: "DesignationCategoryDef::op_Equality",
		},
		LogLevel: "info",
	}
}

// LoadJSON loads config from a JSON reader on top of the defaults.
func LoadJSON(r io.Reader) (Config, error) {
	c := DefaultConfig()
	dec := json.NewDecoder(r)
	if err := dec.Decode(&c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadYAML loads config from a YAML reader on top of the defaults.
func LoadYAML(r io.Reader) (Config, error) {
	c := DefaultConfig()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the config for values the extension cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.ReinstallDelay == 0 {
		errs = append(errs, fmt.Errorf("%w: reinstall_delay must be positive", ErrInvalidConfig))
	}
	if c.ReservationCount <= 0 {
		errs = append(errs, fmt.Errorf("%w: reservation_count must be positive", ErrInvalidConfig))
	}
	for _, m := range []struct{ key, value string }{
		{"place_call", c.Patch.PlaceCall},
		{"wrapper_call", c.Patch.WrapperCall},
		{"conversion_call", c.Patch.ConversionCall},
		{"category_field", c.Patch.CategoryField},
		{"category_predicate", c.Patch.CategoryPredicate},
	} {
		if patch.ParseMember(m.value).IsZero() {
			errs = append(errs, fmt.Errorf("%w: patch.%s is empty", ErrInvalidConfig, m.key))
		}
	}
	seen := make(map[string]bool, len(c.Excluded))
	for _, name := range c.Excluded {
		if name == "" {
			errs = append(errs, fmt.Errorf("%w: empty name in excluded", ErrInvalidConfig))
			continue
		}
		if seen[name] {
			errs = append(errs, fmt.Errorf("%w: %s excluded twice", ErrInvalidConfig, name))
		}
		seen[name] = true
	}
	return errors.Join(errs...)
}

// Rules builds the rewrite rules for each point from the patch targets.
func (c Config) Rules() map[hooks.Point][]patch.Rule {
	p := c.Patch
	return map[hooks.Point][]patch.Rule{
		BlueprintDesignation: {
			patch.CallRetarget{
				From: patch.ParseMember(p.PlaceCall),
				To:   patch.ParseMember(p.WrapperCall),
			},
			patch.BranchNormalize{
				Field:     patch.ParseMember(p.CategoryField),
				Const:     p.CategoryConst,
				Predicate: patch.ParseMember(p.CategoryPredicate),
			},
		},
		ConstructionJobOffer: {
			patch.OperandBump{
				Conversion: patch.ParseMember(p.ConversionCall),
				From:       1,
				To:         c.ReservationCount,
			},
		},
	}
}
