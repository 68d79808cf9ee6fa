package scan

import (
	"time"

	"tagscan/internal/tags"
)

// Report describes one scanned page for export.
type Report struct {
	File      string     `json:"file"`
	Page      int        `json:"page"`
	Engine    string     `json:"engine"`
	Tags      []tags.Tag `json:"tags"`
	ScannedAt time.Time  `json:"scanned_at"`
}

// NewReport builds a report for res taken from file.
func NewReport(file string, res *Result, at time.Time) Report {
	return Report{
		File:      file,
		Page:      res.Page,
		Engine:    res.Engine,
		Tags:      res.Tags,
		ScannedAt: at.UTC(),
	}
}
