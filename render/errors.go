package render

import "fmt"

// EncodeError reports an encoder invocation that exited non-zero, produced
// no usable artifact, or ran past its deadline.
type EncodeError struct {
	Stage   string
	Stderr  string
	Timeout bool
	Err     error
}

func (e *EncodeError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("encode stage %s timed out", e.Stage)
	}
	return fmt.Sprintf("encode stage %s: %v", e.Stage, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
