package directions

import (
	"strings"

	"github.com/wayfind/wayfind/internal/geo"
)

// Route is a single walking route to a destination.
type Route struct {
	Destination string   `json:"destination"`
	Distance    Quantity `json:"distance"`
	Duration    Quantity `json:"duration"`
	Steps       []Step   `json:"steps"`
}

// Step is one instruction of a Route.
type Step struct {
	// Instruction is the human readable instruction with markup stripped.
	Instruction string    `json:"instruction"`
	Distance    Quantity  `json:"distance"`
	Duration    Quantity  `json:"duration"`
	Start       geo.Point `json:"start"`
	End         geo.Point `json:"end"`
	Maneuver    string    `json:"maneuver,omitempty"`
}

// Quantity is a measured value paired with its display text, for example
// {"0.2 mi", 290} for a distance in meters or {"4 mins", 240} for a duration
// in seconds.
type Quantity struct {
	Text  string `json:"text"`
	Value int    `json:"value"`
}

// RewriteTurns returns a copy of steps with cardinal direction words inside
// instructions replaced by "left"/"right" relative to headingDeg. Compound
// directions are matched before simple ones so "northeast" never rewrites as
// "leftheast".
func RewriteTurns(steps []Step, headingDeg float64) []Step {
	rewritten := make([]Step, len(steps))
	copy(rewritten, steps)

	for i := range rewritten {
		for _, cardinal := range geo.Cardinals {
			if !strings.Contains(rewritten[i].Instruction, cardinal) {
				continue
			}

			turn, err := geo.TurnDirection(headingDeg, cardinal)
			if err != nil {
				continue
			}

			rewritten[i].Instruction = strings.ReplaceAll(rewritten[i].Instruction, cardinal, turn)
		}
	}

	return rewritten
}
