package types

// ProgressFunc is an optional side-channel observer for long-running
// analyses. A nil ProgressFunc is valid and reports nothing. Implementations
// must never influence control flow.
type ProgressFunc func(percent int, message string)

// Report invokes the callback if one is set.
func (f ProgressFunc) Report(percent int, message string) {
	if f != nil {
		f(percent, message)
	}
}
