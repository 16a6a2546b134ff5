package core

// StepKind tags a pipeline step.
type StepKind string

const (
	StepAggregate  StepKind = "aggregate"
	StepCompact    StepKind = "compact"
	StepValidate   StepKind = "validate"
	StepSynthesize StepKind = "synthesize"
)

// StepMode describes how a step is scheduled.
type StepMode string

const (
	// ModeParallel fans out across all adapters.
	ModeParallel StepMode = "parallel"
	// ModeSequential runs once in the run's goroutine.
	ModeSequential StepMode = "sequential"
	// ModeLoop may send the run back to the aggregate step.
	ModeLoop StepMode = "loop"
)

// PipelineStep is one entry of the pipeline descriptor. Progress is the
// session progress reached once the step moves the run forward.
type PipelineStep struct {
	Kind     StepKind `json:"kind"`
	Mode     StepMode `json:"mode"`
	Progress float64  `json:"progress"`
}

// Pipeline is the ordered descriptor a run is driven over.
type Pipeline []PipelineStep

// DefaultPipeline returns Aggregate, Compact, Validate-loop, Synthesize.
func DefaultPipeline() Pipeline {
	return Pipeline{
		{Kind: StepAggregate, Mode: ModeParallel, Progress: 0},
		{Kind: StepCompact, Mode: ModeSequential, Progress: 0.33},
		{Kind: StepValidate, Mode: ModeLoop, Progress: 0.66},
		{Kind: StepSynthesize, Mode: ModeSequential, Progress: 1.0},
	}
}

// Index returns the position of the first step of the given kind, or -1.
func (p Pipeline) Index(kind StepKind) int {
	for i, s := range p {
		if s.Kind == kind {
			return i
		}
	}
	return -1
}

// Checkpoint is the run state persisted at a step boundary so a paused run
// can resume deterministically.
type Checkpoint struct {
	// Next is the index of the pending pipeline step.
	Next    int    `json:"next"`
	Query   string `json:"query"`
	Retries int    `json:"retries"`
	// Aggregated holds a pass that has not been compacted yet.
	Aggregated     *AggregatedContext `json:"aggregated,omitempty"`
	Context        CompactedContext   `json:"context"`
	Contradictions []string           `json:"contradictions,omitempty"`
}

// Clone returns a deep copy of the checkpoint.
func (c Checkpoint) Clone() Checkpoint {
	if c.Aggregated != nil {
		agg := c.Aggregated.Clone()
		c.Aggregated = &agg
	}
	c.Context = c.Context.Clone()
	c.Contradictions = append([]string(nil), c.Contradictions...)
	return c
}
