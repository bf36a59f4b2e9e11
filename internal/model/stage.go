package model

// Stage is one step of the evidence pipeline, executed as an independently
// retryable queue job.
type Stage string

const (
	StageIngest     Stage = "ingest"
	StageNormalize  Stage = "normalize"
	StageEmbed      Stage = "embed"
	StageSynthesize Stage = "synthesize"
)

// Stages lists every pipeline stage in execution order.
var Stages = []Stage{StageIngest, StageNormalize, StageEmbed, StageSynthesize}

// Next returns the stage that follows s. The second return is false for the
// terminal stage; transitions are one-directional.
func (s Stage) Next() (Stage, bool) {
	switch s {
	case StageIngest:
		return StageNormalize, true
	case StageNormalize:
		return StageEmbed, true
	case StageEmbed:
		return StageSynthesize, true
	default:
		return "", false
	}
}

// Valid reports whether s names a known stage.
func (s Stage) Valid() bool {
	switch s {
	case StageIngest, StageNormalize, StageEmbed, StageSynthesize:
		return true
	}
	return false
}
