package models

import "time"

// PanelState is the lifecycle stage of a panel's current render.
type PanelState string

const (
	PanelStateIdle      PanelState = "idle"
	PanelStateReading   PanelState = "reading"
	PanelStateParsing   PanelState = "parsing"
	PanelStateFetching  PanelState = "fetching"
	PanelStateRendering PanelState = "rendering"
	PanelStateComplete  PanelState = "complete"
	PanelStateError     PanelState = "error"
)

// DefaultPanelTitle is shown until a file has been accepted.
const DefaultPanelTitle = "Drag and drop a CSV file here, or click to select one."

// PanelStatus is the user-visible state of one results panel.
type PanelStatus struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	State       PanelState `json:"state"`
	Message     string     `json:"message,omitempty"`
	ErrorCode   string     `json:"errorCode,omitempty"`
	Generation  uint64     `json:"generation"`
	FileID      string     `json:"fileId,omitempty"`
	RecordCount int        `json:"recordCount"`
	IssueCount  int        `json:"issueCount,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// NewPanelStatus creates an idle panel showing the default prompt.
func NewPanelStatus(id string) *PanelStatus {
	now := time.Now()
	return &PanelStatus{
		ID:        id,
		Title:     DefaultPanelTitle,
		State:     PanelStateIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Finished reports whether the panel is in a terminal state.
func (p *PanelStatus) Finished() bool {
	return p.State == PanelStateComplete || p.State == PanelStateError || p.State == PanelStateIdle
}
