package render

import "fmt"

// Stage names the pipeline step a RenderError came from.
type Stage string

const (
	StageGeography Stage = "geography"
	StageCommit    Stage = "commit"
)

// RenderError is a recoverable render failure with a message fit for the user.
type RenderError struct {
	Stage  Stage
	Reason string
	Err    error
}

func (e *RenderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("render %s: %s: %v", e.Stage, e.Reason, e.Err)
	}
	return fmt.Sprintf("render %s: %s", e.Stage, e.Reason)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown in the panel status.
func (e *RenderError) UserMessage() string {
	return e.Reason
}
