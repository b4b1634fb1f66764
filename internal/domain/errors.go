package domain

import (
	"errors"
	"fmt"
)

var ErrOrderNotFound = errors.New("order not found")

// ValidationError reports a missing or malformed field on caller input.
// The operation is never attempted when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func Invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ValidateProducts checks the souvenir product invariant: one to three
// lines, each kind appearing at most once, non-negative counts.
func ValidateProducts(products []Product) error {
	if len(products) == 0 {
		return Invalid("products", "at least one product is required")
	}
	if len(products) > 3 {
		return Invalid("products", "at most three products are allowed")
	}
	seen := make(map[ProductKind]bool, len(products))
	for _, p := range products {
		switch p.Kind {
		case ProductKeychain, ProductMagnet, ProductPin:
		default:
			return Invalid("products", fmt.Sprintf("unknown product kind %q", p.Kind))
		}
		if seen[p.Kind] {
			return Invalid("products", fmt.Sprintf("duplicate product kind %q", p.Kind))
		}
		seen[p.Kind] = true
		if p.Pieces < 0 {
			return Invalid("products", "piece count must not be negative")
		}
		if p.Designs < 0 {
			return Invalid("products", "design count must not be negative")
		}
	}
	return nil
}
