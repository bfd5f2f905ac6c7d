package firmware

import (
	"github.com/mastercactapus/probeguard/coord"
	"github.com/mastercactapus/probeguard/gcode"
)

// ToolsetterRadius is the tolerance used to decide if the machine is at the
// toolsetter (G59.3) position.
const ToolsetterRadius = 5.0

// ToolChangeConfig configures automatic toolsetter probing on M6.
type ToolChangeConfig struct {
	// ProbePos is the toolsetter (G59.3) position in machine coordinates.
	ProbePos     coord.Point
	TravelHeight float64
	FeedRate     float64
	MaxTravel    float64

	// Radius overrides ToolsetterRadius when set.
	Radius float64
}

func (tc ToolChangeConfig) radius() float64 {
	if tc.Radius > 0 {
		return tc.Radius
	}
	return ToolsetterRadius
}

func generateGoTo(travelZ float64, pos coord.Point) []gcode.Block {
	return []gcode.Block{
		{
			{W: 'G', Arg: 53},
			{W: 'G', Arg: 0},
			{W: 'Z', Arg: travelZ},
		},
		{
			{W: 'G', Arg: 53},
			{W: 'G', Arg: 0},
			{W: 'X', Arg: pos.X},
			{W: 'Y', Arg: pos.Y},
		},
		{
			{W: 'G', Arg: 53},
			{W: 'G', Arg: 0},
			{W: 'Z', Arg: pos.Z},
		},
	}
}

// probeBlock returns a relative straight probe toward the toolsetter.
func (tc ToolChangeConfig) probeBlock() gcode.Block {
	return gcode.Block{
		{W: 'G', Arg: 91},
		{W: 'G', Arg: 38.2},
		{W: 'Z', Arg: -tc.MaxTravel},
		{W: 'F', Arg: tc.FeedRate},
	}
}

// toolChange moves to the toolsetter and probes the new tool. Without a
// toolsetter configured the tool change is manual and nothing moves.
func (c *Controller) toolChange() error {
	tc := c.cfg.ToolChange
	if tc == nil {
		c.message("Tool change: manual", MessageInfo)
		return nil
	}

	for _, b := range generateGoTo(tc.TravelHeight, tc.ProbePos) {
		err := c.pulse(b)
		if err != nil {
			return err
		}
	}

	tool := c.tool
	err := c.probe(tc.probeBlock(), &tool, true)
	if err != nil {
		return err
	}

	return c.pulse(gcode.Block{
		{W: 'G', Arg: 90},
		{W: 'G', Arg: 53},
		{W: 'G', Arg: 0},
		{W: 'Z', Arg: tc.TravelHeight},
	})
}
