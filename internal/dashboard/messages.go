package dashboard

import (
	"encoding/json"
	"time"
)

// MessageType names the kind of event a Message carries.
type MessageType string

const (
	MessageTypeTaskUpdate MessageType = "task_update" // task created, updated or deleted
	MessageTypeDepUpdate  MessageType = "dep_update"  // edge added or removed
	MessageTypeStats      MessageType = "stats"       // graph counts, see service.Stats
	MessageTypeReminder   MessageType = "reminder"    // task due soon or overdue
)

// Message is the envelope written to every client.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func (m Message) encode() ([]byte, error) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	return json.Marshal(m)
}

// TaskUpdateData is the payload of a task_update message.
type TaskUpdateData struct {
	TaskID   int64  `json:"task_id"`
	Action   string `json:"action"` // created, updated, deleted
	Status   string `json:"status,omitempty"`
	Title    string `json:"title,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// DepUpdateData is the payload of a dep_update message.
type DepUpdateData struct {
	TaskID       int64  `json:"task_id"`
	DependencyID int64  `json:"dependency_id"`
	Action       string `json:"action"` // added, removed
}

// ReminderData is the payload of a reminder message.
type ReminderData struct {
	Kind    string    `json:"kind"` // upcoming, overdue
	TaskID  int64     `json:"task_id"`
	Title   string    `json:"title"`
	DueDate time.Time `json:"due_date"`
}
