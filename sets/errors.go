package sets

import "fmt"

// DimensionMismatchError reports an invalid variable allocation or an
// expression whose operand shapes do not compose. It is raised during model
// validation, before any numeric work.
type DimensionMismatchError struct {
	Op     string // operation being validated ("allocate", "matmul", ...)
	Detail string
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch in %s: %s", e.Op, e.Detail)
}

// NewDimensionMismatch builds a DimensionMismatchError for op.
func NewDimensionMismatch(op, format string, args ...any) *DimensionMismatchError {
	return &DimensionMismatchError{Op: op, Detail: fmt.Sprintf(format, args...)}
}
