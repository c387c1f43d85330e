package errorz

import "errors"

// Error kinds shared by storage, service and transport layers.
// Wrap them with fmt.Errorf("%w: ...") and match with errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInternal          = errors.New("internal error")
)

// Kind returns the taxonomy sentinel err belongs to, or ErrInternal.
func Kind(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrForbidden, ErrConflict, ErrInsufficientFunds} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}
