package lifecycle

// State is the lifecycle state of one object type's index.
type State string

// Index states.
const (
	NoIndex  State = "no_index"
	Building State = "building"
	Live     State = "live"
	Dropped  State = "dropped"
)

// Status is a point-in-time view of one object type's index.
type Status struct {
	ObjectType string `json:"object_type"`
	State      State  `json:"state"`
	Live       int    `json:"live_generation,omitempty"`
	Building   int    `json:"building_generation,omitempty"`
}
