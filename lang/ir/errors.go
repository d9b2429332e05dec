package ir

// AssertionError is returned by the hidden assert() native when its
// condition was false. The VM surfaces it as a runtime failure carrying
// Message and the call-stack frames at the point of failure, same as any
// other native error (spec.md §4.5 "Runtime errors").
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string { return "assertion failed: " + e.Message }
