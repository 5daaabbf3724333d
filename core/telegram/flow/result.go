package flow

// Result is what every step handler returns. The constructors make
// terminal and next-step mutually exclusive: Done never carries a next
// step and Next never terminates, so the contradictory combination
// cannot be expressed.
type Result[T any] struct {
	next      string
	terminal  bool
	expireAll bool
	data      *T
}

// Next moves the conversation to the named step. Pending expirable
// messages are invalidated unless KeepPending is applied.
func Next[T any](step string) Result[T] {
	return Result[T]{next: step, expireAll: true}
}

// Stay re-runs the current step on the next inbound event. Used for
// validation-failed loops.
func Stay[T any]() Result[T] {
	return Result[T]{expireAll: true}
}

// Done terminates the conversation; the session is retired afterwards.
func Done[T any]() Result[T] {
	return Result[T]{terminal: true, expireAll: true}
}

// KeepPending carries previously sent expirable messages forward
// unexpired across this step boundary.
func (r Result[T]) KeepPending() Result[T] {
	r.expireAll = false
	return r
}

// WithData replaces the session's stored data wholesale. Without it the
// previous data is kept unchanged; there is no merging.
func (r Result[T]) WithData(data T) Result[T] {
	r.data = &data
	return r
}

// Terminal reports whether the session should be retired.
func (r Result[T]) Terminal() bool { return r.terminal }

// NextStep returns the declared next step, "" meaning stay.
func (r Result[T]) NextStep() string { return r.next }
