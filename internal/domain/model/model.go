// Package model contains the value types passed between layers: the records
// the checks inspect, the manifests that group them into a run and the
// reports a run produces.
package model

// EventTriplet is an annotated event: onset, apex and offset frame indices
// inside a clip of NFrames frames.
type EventTriplet struct {
	ID      string `json:"id,omitempty" yaml:"id,omitempty"`
	Onset   int    `json:"onset" yaml:"onset"`
	Apex    int    `json:"apex" yaml:"apex"`
	Offset  int    `json:"offset" yaml:"offset"`
	NFrames int    `json:"n_frames" yaml:"n_frames"`
}

// Window is a feature-extraction window over a clip of NFrames frames.
type Window struct {
	ID      string `json:"id,omitempty" yaml:"id,omitempty"`
	Start   int    `json:"start" yaml:"start"`
	Length  int    `json:"length" yaml:"length"`
	NFrames int    `json:"n_frames" yaml:"n_frames"`
}

// SamplingDescriptor reports a clip's frame count, frame rate and duration.
// A nil Tolerance means the default tolerance of the run.
type SamplingDescriptor struct {
	ID          string   `json:"id,omitempty" yaml:"id,omitempty"`
	Frames      int      `json:"frames" yaml:"frames"`
	FPS         float64  `json:"fps" yaml:"fps"`
	DurationSec float64  `json:"duration_sec" yaml:"duration_sec"`
	Tolerance   *float64 `json:"tolerance,omitempty" yaml:"tolerance,omitempty" validate:"omitempty,gte=0"`
}

// SplitAssignment holds the subject identifiers of each partition.
type SplitAssignment struct {
	Train []string `json:"train" yaml:"train"`
	Val   []string `json:"val" yaml:"val"`
	Test  []string `json:"test" yaml:"test"`
}

// LabelPopulation maps split names to the class labels observed in them.
// A nil MinCount means the default of the run.
type LabelPopulation struct {
	LabelsBySplit map[string][]int `json:"labels_by_split" yaml:"labels_by_split" validate:"required,min=1,dive,keys,required,endkeys"`
	MinCount      *int             `json:"min_count,omitempty" yaml:"min_count,omitempty" validate:"omitempty,gte=0"`
}

// LabelDomain is a label sequence and the labels it may contain.
// An empty Allowed means the default domain.
type LabelDomain struct {
	Labels  []int `json:"labels" yaml:"labels"`
	Allowed []int `json:"allowed,omitempty" yaml:"allowed,omitempty"`
}

// LabelRange bounds encoded labels to the closed range [Min, Max].
type LabelRange struct {
	Labels []int `json:"labels" yaml:"labels"`
	Min    int   `json:"min" yaml:"min"`
	Max    int   `json:"max" yaml:"max" validate:"gtefield=Min"`
}
