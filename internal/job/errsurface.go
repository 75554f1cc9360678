package job

import "sync"

// ErrorSurface holds one dismissable error message. It is independent of the
// job record: clearing it never touches Job.ErrorDetails.
type ErrorSurface struct {
	mu       sync.RWMutex
	message  string
	onChange func(string)
}

// NewErrorSurface creates an empty surface. onChange, if non-nil, is called
// with the new message after every change (empty string on clear).
func NewErrorSurface(onChange func(string)) *ErrorSurface {
	return &ErrorSurface{onChange: onChange}
}

// Set replaces the current message. An empty message clears the surface.
func (e *ErrorSurface) Set(msg string) {
	e.mu.Lock()
	changed := e.message != msg
	e.message = msg
	cb := e.onChange
	e.mu.Unlock()

	if changed && cb != nil {
		cb(msg)
	}
}

// Clear dismisses the current message
func (e *ErrorSurface) Clear() {
	e.Set("")
}

// Message returns the current message, empty when nothing is shown
func (e *ErrorSurface) Message() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.message
}

// Active reports whether a message is currently shown
func (e *ErrorSurface) Active() bool {
	return e.Message() != ""
}
