package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/khoitran3172/todo-list/internal/reminder"
	"github.com/khoitran3172/todo-list/internal/service"
	"github.com/khoitran3172/todo-list/internal/types"
)

var (
	_ service.Notifier = (*Handler)(nil)
	_ reminder.Sink    = (*Handler)(nil)
)

// StatsFunc computes current graph statistics.
type StatsFunc func(ctx context.Context) (*service.Stats, error)

// Handler turns service events and reminders into dashboard messages.
type Handler struct {
	server *Server
	stats  StatsFunc
	logger *log.Logger
}

// NewHandler creates a handler broadcasting through server. When stats is
// non-nil, every task or dependency change is followed by a stats message
// and new clients receive current stats on connect.
func NewHandler(server *Server, stats StatsFunc, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	h := &Handler{server: server, stats: stats, logger: logger}
	if stats != nil {
		server.SetWelcome(h.statsMessage)
	}
	return h
}

// TaskCreated implements service.Notifier.
func (h *Handler) TaskCreated(task *types.Task) {
	h.logger.Printf("Task created: %d (%s)", task.ID, task.Title)
	h.send(MessageTypeTaskUpdate, taskData("created", task))
	h.broadcastStats()
}

// TaskUpdated implements service.Notifier.
func (h *Handler) TaskUpdated(task *types.Task) {
	h.logger.Printf("Task updated: %d (%s)", task.ID, task.Title)
	h.send(MessageTypeTaskUpdate, taskData("updated", task))
	h.broadcastStats()
}

// TaskDeleted implements service.Notifier.
func (h *Handler) TaskDeleted(id int64) {
	h.logger.Printf("Task deleted: %d", id)
	h.send(MessageTypeTaskUpdate, TaskUpdateData{TaskID: id, Action: "deleted"})
	h.broadcastStats()
}

// DependencyAdded implements service.Notifier.
func (h *Handler) DependencyAdded(dep types.Dependency) {
	h.logger.Printf("Dependency added: %s", dep)
	h.send(MessageTypeDepUpdate, DepUpdateData{TaskID: dep.TaskID, DependencyID: dep.DependsOnID, Action: "added"})
	h.broadcastStats()
}

// DependencyRemoved implements service.Notifier.
func (h *Handler) DependencyRemoved(dep types.Dependency) {
	h.logger.Printf("Dependency removed: %s", dep)
	h.send(MessageTypeDepUpdate, DepUpdateData{TaskID: dep.TaskID, DependencyID: dep.DependsOnID, Action: "removed"})
	h.broadcastStats()
}

// Deliver implements reminder.Sink.
func (h *Handler) Deliver(r reminder.Reminder) {
	h.send(MessageTypeReminder, ReminderData{
		Kind:    string(r.Kind),
		TaskID:  r.Task.ID,
		Title:   r.Task.Title,
		DueDate: r.Task.DueDate,
	})
}

func taskData(action string, task *types.Task) TaskUpdateData {
	return TaskUpdateData{
		TaskID:   task.ID,
		Action:   action,
		Status:   string(task.Status),
		Title:    task.Title,
		Priority: string(task.Priority),
	}
}

func (h *Handler) send(typ MessageType, data interface{}) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}
	h.server.Broadcast(Message{
		Type:      typ,
		Timestamp: time.Now(),
		Data:      dataJSON,
	})
}

func (h *Handler) broadcastStats() {
	if h.stats == nil {
		return
	}
	h.server.Broadcast(h.statsMessage())
}

func (h *Handler) statsMessage() Message {
	msg := Message{Type: MessageTypeStats, Timestamp: time.Now()}
	if h.stats == nil {
		return msg
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	stats, err := h.stats(ctx)
	if err != nil {
		h.logger.Printf("Failed to compute stats: %v", err)
		return msg
	}
	if msg.Data, err = json.Marshal(stats); err != nil {
		h.logger.Printf("Failed to marshal stats: %v", err)
	}
	return msg
}
