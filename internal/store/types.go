package store

import "errors"

// ErrAlreadyExists signals a conditional create that lost to an existing row.
var ErrAlreadyExists = errors.New("already exists")

// ErrNotFound signals a lookup that matched no row.
var ErrNotFound = errors.New("not found")

// LessonFilters narrows lesson queries. Zero values mean "no filter".
type LessonFilters struct {
	Program       string
	Instructor    string
	StartFrom     string // HH:MM inclusive
	StartTo       string // HH:MM inclusive
	AvailableOnly bool
}

// UpsertFailure records one lesson write that failed inside a bulk upsert.
type UpsertFailure struct {
	StudioCode string
	StartTime  string
	Err        error
}

// UpsertResult is the per-record outcome of a bulk upsert.
type UpsertResult struct {
	Written  int
	Failures []UpsertFailure
}

// Progress summarizes a batch run for observability.
type Progress struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
	Remaining  int `json:"remaining"`
}
