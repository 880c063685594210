package permsync

import "time"

// Task is a scheduled check that can be cancelled before it fires
type Task interface {
	// Stop prevents the task from running. It returns false if the task
	// already fired or was stopped.
	Stop() bool
}

// Scheduler runs f once after d. Implementations must not call f
// synchronously from AfterFunc.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Task
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Task {
	return time.AfterFunc(d, f)
}

// RealScheduler schedules on the runtime timer
var RealScheduler Scheduler = realScheduler{}
