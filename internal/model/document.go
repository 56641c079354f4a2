package model

import "time"

// Document is one contract PDF handed to the pipeline.
type Document struct {
	Path string `json:"path"`
	// Source identifies where the document came from (message ID, upload
	// request, CLI argument).
	Source     string    `json:"source,omitempty"`
	Sender     string    `json:"sender,omitempty"`
	Subject    string    `json:"subject,omitempty"`
	ReceivedAt time.Time `json:"received_at,omitempty"`
}
