package engine

import "fmt"

// NonlinearError reports an operation that is only affine when at most one
// operand carries decision terms, applied where both do, or a numeric-only
// operator applied to decision terms.
type NonlinearError struct {
	Op string
}

func (e *NonlinearError) Error() string {
	return fmt.Sprintf("operator %q would make the problem nonlinear in the decision variables", e.Op)
}
