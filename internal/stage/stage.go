package stage

// Name identifies a pipeline stage. Values double as the stageReached field
// on item outcomes.
type Name string

const (
	Normalize Name = "normalize"
	Script    Name = "script"
	Audio     Name = "audio"
	Assemble  Name = "assemble"
)

// Order lists the stages in execution order.
var Order = []Name{Normalize, Script, Audio, Assemble}

// Origin records whether a stage result came from the external service or
// from the stage's own fallback.
type Origin string

const (
	Primary  Origin = "primary"
	Fallback Origin = "fallback"
)
