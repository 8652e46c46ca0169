package domain

import "time"

// Entry is one dispatch outcome recorded in the local journal.
type Entry struct {
	ID          string    `json:"id"`
	Identity    string    `json:"identity"`
	Hour        int       `json:"hour"`
	Mode        Mode      `json:"mode"`
	Role        string    `json:"role"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}
