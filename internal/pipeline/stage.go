package pipeline

import (
	"fmt"
	"strings"
)

// Stage is one step of the documentary pipeline as reported to job observers.
type Stage struct {
	Number   int
	Label    string
	Progress int
	Detail   string
}

var (
	StagePlanning  = Stage{1, "Planning tracks", 5, "Drafting alternates and story beats"}
	StagePreparing = Stage{2, "Preparing playlist", 30, "Mapping primary tracks and alternates"}
	StageNarration = Stage{3, "Generating narration", 70, "Preparing narration tracks"}
	StageFinalize  = Stage{4, "Finalizing", 96, "Saving playlist"}
	StageDone      = Stage{5, "Done", 100, ""}
)

// ErrorKind classifies why a job failed.
type ErrorKind string

const (
	KindUpstreamGeneration ErrorKind = "upstream_generation"
	KindSynthesis          ErrorKind = "synthesis"
	KindPersistence        ErrorKind = "persistence"
)

// StageError is the error a failed job is recorded with.
type StageError struct {
	Stage Stage
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", strings.ToLower(e.Stage.Label), e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(s Stage, kind ErrorKind, err error) error {
	return &StageError{Stage: s, Kind: kind, Err: err}
}
