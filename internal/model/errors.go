package model

import "github.com/rotisserie/eris"

// ErrInvariantViolated marks a scorer/allocator contract breach, e.g. a
// non-finite value reaching an accumulator or weights that do not sum to 1.
// Unlike data defects, which are skipped record by record, this error is
// fatal for the run: any partial result would be untrustworthy.
var ErrInvariantViolated = eris.New("optimizer invariant violated")
