package service

import "github.com/khoitran3172/todo-list/internal/types"

// Notifier receives events after mutations commit. Implementations must not
// block; they are called on the request goroutine after the engine lock has
// been released.
type Notifier interface {
	TaskCreated(task *types.Task)
	TaskUpdated(task *types.Task)
	TaskDeleted(id int64)
	DependencyAdded(dep types.Dependency)
	DependencyRemoved(dep types.Dependency)
}

type nopNotifier struct{}

func (nopNotifier) TaskCreated(*types.Task) {}
func (nopNotifier) TaskUpdated(*types.Task) {}
func (nopNotifier) TaskDeleted(int64) {}
func (nopNotifier) DependencyAdded(types.Dependency) {}
func (nopNotifier) DependencyRemoved(types.Dependency) {}

// Notifiers fans every event out to each notifier in order.
type Notifiers []Notifier

func (ns Notifiers) TaskCreated(task *types.Task) {
	for _, n := range ns {
		n.TaskCreated(task.Clone())
	}
}

func (ns Notifiers) TaskUpdated(task *types.Task) {
	for _, n := range ns {
		n.TaskUpdated(task.Clone())
	}
}

func (ns Notifiers) TaskDeleted(id int64) {
	for _, n := range ns {
		n.TaskDeleted(id)
	}
}

func (ns Notifiers) DependencyAdded(dep types.Dependency) {
	for _, n := range ns {
		n.DependencyAdded(dep)
	}
}

func (ns Notifiers) DependencyRemoved(dep types.Dependency) {
	for _, n := range ns {
		n.DependencyRemoved(dep)
	}
}
