package domain

import "time"

// IngestStats holds statistics about one poll run across all sources.
type IngestStats struct {
	Sources    int
	Fetched    int
	New        int
	Dispatched int
	Errors     int
	Duration   time.Duration
}
