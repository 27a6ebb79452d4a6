package mongoadapter

import "errors"

var (
	// ErrStoreRequired is returned by New when no store is configured.
	ErrStoreRequired = errors.New("mongoadapter: store is required")

	// ErrMalformedRule is returned on load when a stored record violates
	// the rule document contract (for example, a missing policy type).
	ErrMalformedRule = errors.New("mongoadapter: malformed stored rule")

	// ErrUnknownPolicyType is returned on load when a stored rule names a
	// policy type the model has no assertion for.
	ErrUnknownPolicyType = errors.New("mongoadapter: policy type not in model")

	// ErrInvalidFilter is returned by LoadFilteredPolicy when the filter
	// is not a Filter.
	ErrInvalidFilter = errors.New("mongoadapter: invalid filter type")
)
