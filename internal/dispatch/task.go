package dispatch

import "context"

// Task is the handle for one scheduled skill run. The dispatcher returns
// handles without awaiting them; callers may Wait.
type Task struct {
	skillName string
	done      chan struct{}
	err       error // written once, before done is closed
}

func newTask(skillName string) *Task {
	return &Task{skillName: skillName, done: make(chan struct{})}
}

// Skill returns the name of the skill this task runs.
func (t *Task) Skill() string { return t.skillName }

// Wait blocks until the run finishes or ctx is cancelled.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return t.err
	}
}

// Done returns a channel closed when the run finishes.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the run's error. Only valid after Done is closed.
func (t *Task) Err() error { return t.err }
