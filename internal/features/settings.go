package features

import (
	"fmt"
	"slices"
)

// Settings configures all three stages. The zero value is not usable; start
// from DefaultSettings.
type Settings struct {
	Assigner AssignerSettings `yaml:"assigner" json:"assigner"`
	Imputer  ImputerSettings  `yaml:"imputer" json:"imputer"`
	Capper   CapperSettings   `yaml:"capper" json:"capper"`
}

// AssignerSettings configures region clustering.
type AssignerSettings struct {
	Clusters  int     `yaml:"clusters" json:"clusters" validate:"min=1"`
	Restarts  int     `yaml:"restarts" json:"restarts" validate:"min=1"`
	MaxIter   int     `yaml:"max_iter" json:"max_iter" validate:"min=1"`
	Tolerance float64 `yaml:"tolerance" json:"tolerance" validate:"gte=0"`
	Seed      uint64  `yaml:"seed" json:"seed"`
}

// ImputerSettings configures which columns are imputed.
type ImputerSettings struct {
	// NumericExclude lists numeric columns left untouched.
	NumericExclude []string `yaml:"numeric_exclude" json:"numeric_exclude" validate:"dive,required"`
	// Categorical lists the categorical columns to impute.
	Categorical []string `yaml:"categorical" json:"categorical" validate:"dive,required"`
}

// CapperSettings configures outlier capping, log transforms, and binning.
type CapperSettings struct {
	Cap  []string      `yaml:"cap" json:"cap" validate:"dive,required"`
	Log  []string      `yaml:"log" json:"log" validate:"dive,required"`
	Bins []BinSettings `yaml:"bins" json:"bins" validate:"dive"`
}

// BinSettings discretizes one column into three ordered bands:
// v <= Thresholds[0], Thresholds[0] < v <= Thresholds[1], v > Thresholds[1].
type BinSettings struct {
	Column     string    `yaml:"column" json:"column" validate:"required"`
	Output     string    `yaml:"output" json:"output" validate:"required"`
	Thresholds []float64 `yaml:"thresholds" json:"thresholds" validate:"len=2"`
	Labels     []string  `yaml:"labels" json:"labels" validate:"len=3,dive,required"`
}

// DefaultSettings returns the settings of the production deployment.
func DefaultSettings() Settings {
	bandLabels := []string{"low", "medium", "high"}
	return Settings{
		Assigner: AssignerSettings{
			Clusters:  9,
			Restarts:  10,
			MaxIter:   300,
			Tolerance: 1e-4,
			Seed:      42,
		},
		Imputer: ImputerSettings{
			NumericExclude: []string{"Cloud9am", "Cloud3pm", "Latitude", "Longitude"},
			Categorical:    []string{"Location"},
		},
		Capper: CapperSettings{
			Cap: []string{
				"Temp9am", "Temp3pm", "Pressure9am", "Pressure3pm",
				"Humidity9am", "MinTemp", "MaxTemp",
				"WindGustSpeed", "WindSpeed9am", "WindSpeed3pm",
			},
			Log: []string{"WindGustSpeed", "WindSpeed9am", "WindSpeed3pm"},
			Bins: []BinSettings{
				{Column: "Rainfall", Output: "Rainfall_cat", Thresholds: []float64{10, 30}, Labels: bandLabels},
				{Column: "Evaporation", Output: "Evaporation_cat", Thresholds: []float64{3, 7}, Labels: slices.Clone(bandLabels)},
			},
		},
	}
}

// Clone returns a deep copy so callers cannot mutate settings a stage holds.
func (s Settings) Clone() Settings {
	out := s
	out.Imputer.NumericExclude = slices.Clone(s.Imputer.NumericExclude)
	out.Imputer.Categorical = slices.Clone(s.Imputer.Categorical)
	out.Capper.Cap = slices.Clone(s.Capper.Cap)
	out.Capper.Log = slices.Clone(s.Capper.Log)
	out.Capper.Bins = make([]BinSettings, len(s.Capper.Bins))
	for i, b := range s.Capper.Bins {
		out.Capper.Bins[i] = BinSettings{
			Column:     b.Column,
			Output:     b.Output,
			Thresholds: slices.Clone(b.Thresholds),
			Labels:     slices.Clone(b.Labels),
		}
	}
	return out
}

func (s AssignerSettings) validate() error {
	if s.Clusters < 1 {
		return fmt.Errorf("assigner: clusters must be at least 1, got %d", s.Clusters)
	}
	if s.Restarts < 1 {
		return fmt.Errorf("assigner: restarts must be at least 1, got %d", s.Restarts)
	}
	if s.MaxIter < 1 {
		return fmt.Errorf("assigner: max_iter must be at least 1, got %d", s.MaxIter)
	}
	return nil
}

func (s CapperSettings) validate() error {
	for _, col := range s.Log {
		if !slices.Contains(s.Cap, col) {
			return fmt.Errorf("capper: log column %q is not in the cap set", col)
		}
	}
	for _, b := range s.Bins {
		if len(b.Thresholds) != 2 || len(b.Labels) != 3 {
			return fmt.Errorf("capper: bin %q needs 2 thresholds and 3 labels", b.Column)
		}
		if b.Thresholds[0] >= b.Thresholds[1] {
			return fmt.Errorf("capper: bin %q thresholds must ascend, got %v", b.Column, b.Thresholds)
		}
	}
	return nil
}
