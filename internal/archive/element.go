package archive

import "time"

// Entry is one recorded value in an element's history.
type Entry[T comparable] struct {
	Time  time.Time `json:"time"`
	Value T         `json:"value"`
}

// Element is an append-only history of a single attribute's value over time.
// A new entry is recorded only when the value differs from the most recent
// one; the history never shrinks or reorders.
type Element[T comparable] []Entry[T]

// NewElement seeds an element with a single entry. A nil timestamp means now.
func NewElement[T comparable](t *time.Time, value T) Element[T] {
	return Element[T]{Entry[T]{Time: orNow(t), Value: value}}
}

// Update appends a new entry iff value differs from Current(). A nil
// timestamp means now. Repeats are no-ops.
func (e *Element[T]) Update(t *time.Time, value T) {
	if len(*e) > 0 && (*e)[len(*e)-1].Value == value {
		return
	}
	*e = append(*e, Entry[T]{Time: orNow(t), Value: value})
}

// Current returns the most recent value, or the zero value when empty.
func (e Element[T]) Current() T {
	if len(e) == 0 {
		var zero T
		return zero
	}
	return e[len(e)-1].Value
}

// Changed reports whether more than one value has ever been recorded.
func (e Element[T]) Changed() bool {
	return len(e) > 1
}

func orNow(t *time.Time) time.Time {
	if t != nil {
		return *t
	}
	return time.Now().UTC()
}
