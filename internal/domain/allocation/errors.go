package allocation

import "errors"

var (
	ErrMissingPaymentID     = errors.New("payment id is required")
	ErrMissingJustification = errors.New("manual allocation requires a justification")
)
