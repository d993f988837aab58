package markov

import (
	"errors"
	"fmt"
)

// ErrContractViolation matches every *ContractViolation with errors.Is.
var ErrContractViolation = errors.New("markov: contract violation")

// ContractViolation reports caller misuse of a KState, such as out of order
// samples or a candidate whose predecessor is not part of the previous
// update. The state is left unchanged.
type ContractViolation struct {
	Op     string
	Reason string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("markov: contract violation in %s: %s", e.Op, e.Reason)
}

func (e *ContractViolation) Unwrap() error { return ErrContractViolation }

func violation(op, format string, args ...any) error {
	return &ContractViolation{Op: op, Reason: fmt.Sprintf(format, args...)}
}
