package reconf

import (
	"github.com/rs/zerolog"

	"github.com/cuemby/reconf/pkg/duration"
)

// DefaultMaxTime is the default upper bound of the reconfiguration horizon
const DefaultMaxTime = 3600

// RelocationPolicy tells how a running VM staying on its node is accounted
// for when its demand differs from its consumption
type RelocationPolicy string

const (
	// RelocationAuto picks RelocationIncrease for the VMs demanding more
	// than they consume in some resource view, RelocationDecrease otherwise
	RelocationAuto RelocationPolicy = "auto"

	// RelocationDecrease switches a staying VM to its demand at time 0
	RelocationDecrease RelocationPolicy = "decrease"

	// RelocationIncrease keeps the consumption of a staying VM until the
	// end of the reconfiguration, where it switches to its demand
	RelocationIncrease RelocationPolicy = "increase"
)

// Config holds the settings of a reconfiguration problem
type Config struct {
	// MaxTime bounds the horizon end
	MaxTime int

	Durations  *duration.Evaluators
	Relocation RelocationPolicy
	Logger     zerolog.Logger
}

// DefaultConfig returns the default problem settings
func DefaultConfig() Config {
	return Config{
		MaxTime:    DefaultMaxTime,
		Durations:  duration.Defaults(),
		Relocation: RelocationAuto,
		Logger:     zerolog.Nop(),
	}
}
