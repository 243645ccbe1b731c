package session

import "github.com/ngabopay/ussdpilot/pkg/domain"

// StepQueue holds the caller's steps and a cursor. An empty queue means the
// code is single-shot. Not safe for concurrent use; the controller only touches
// it from the serialized snapshot pass.
type StepQueue struct {
	steps  []domain.Step
	cursor int
}

// NewStepQueue copies steps into a fresh queue.
func NewStepQueue(steps []domain.Step) *StepQueue {
	return &StepQueue{steps: append([]domain.Step(nil), steps...)}
}

// Next returns the next step and advances the cursor.
func (q *StepQueue) Next() (domain.Step, bool) {
	if q == nil || q.cursor >= len(q.steps) {
		return domain.Step{}, false
	}
	s := q.steps[q.cursor]
	q.cursor++
	return s, true
}

// Remaining is the number of steps not yet consumed.
func (q *StepQueue) Remaining() int {
	if q == nil {
		return 0
	}
	return len(q.steps) - q.cursor
}

// Consumed is the number of steps already injected.
func (q *StepQueue) Consumed() int {
	if q == nil {
		return 0
	}
	return q.cursor
}

// Len is the total number of steps.
func (q *StepQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.steps)
}
