package aibridge

import (
	"errors"
	"fmt"
)

// Sentinel errors for the content model.
// All use prefix "aibridge:" for identification. Callers should use errors.Is/errors.As.
var (
	ErrUnknownBlockType = errors.New("aibridge: unknown content block type")
	ErrInvalidBlock     = errors.New("aibridge: content block is malformed")
)

// BlockError wraps a sentinel error with the position and type of the offending block.
// Use errors.Is(err, ErrInvalidBlock) and errors.As(err, &blockErr) to inspect.
type BlockError struct {
	Index int
	Type  string
	Err   error
}

// Error implements error.
func (e *BlockError) Error() string {
	return fmt.Sprintf("aibridge: block %d (%q): %v", e.Index, e.Type, e.Err)
}

// Unwrap returns the wrapped error for errors.Is/errors.As.
func (e *BlockError) Unwrap() error { return e.Err }

// Compile-time check that BlockError implements error.
var _ error = (*BlockError)(nil)
