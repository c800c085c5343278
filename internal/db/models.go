// Package db persists practice history in a local SQLite database.
package db

import "time"

// Turn is one analyzed transmission: what the student sent and what came back.
type Turn struct {
	ID             string
	SessionID      string
	Frequency      float64
	Feedback       string
	ControllerText string
	AudioURL       string
	Completed      bool
	CreatedAt      time.Time
}

// SessionSummary aggregates the turns of one practice session.
type SessionSummary struct {
	SessionID string
	Turns     int
	Completed bool
	LastAt    time.Time
}
