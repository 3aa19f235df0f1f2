package extraction

import "fmt"

// InputError reports malformed extraction input (invalid UTF-8 or a binary
// payload). Missing fields never produce an error.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("extraction: invalid input: %s", e.Reason)
}
