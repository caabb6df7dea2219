package models

import "time"

// File statuses.
const (
	FileStatusUploaded = "uploaded"
	FileStatusParsed   = "parsed"
	FileStatusError    = "error"
)

// FileInfo represents metadata about an uploaded file.
type FileInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
	Status      string    `json:"status"` // "uploaded", "parsed", "error"
	RecordCount int       `json:"recordCount"`
}
