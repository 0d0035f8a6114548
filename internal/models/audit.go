package models

import "time"

// AuditEntry is one record in the append-only action log of an instance.
// Entries are never edited or deleted; workflow history and processing-time
// metrics are derived from this log.
type AuditEntry struct {
	ID         int64     `json:"id"`
	InstanceID int64     `json:"instance_id"`
	SubjectID  string    `json:"subject_id"`
	ActorRole  string    `json:"actor_role"`
	ActorID    string    `json:"actor_id,omitempty"`
	Action     string    `json:"action"`
	Step       string    `json:"step"`
	Comments   string    `json:"comments,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
