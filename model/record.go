package model

import "time"

// Record is a submitted form entry.
type Record struct {
	ID        string         `json:"id"`
	FormID    string         `json:"form_id"`
	Data      map[string]any `json:"data"`
	CreatedBy string         `json:"created_by,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Version   int            `json:"version"`
}

// StageChange records a lifecycle stage change in the audit trail.
type StageChange struct {
	ID        string    `json:"id"`
	RecordID  string    `json:"record_id"`
	FieldID   string    `json:"field_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ActorID   string    `json:"actor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
