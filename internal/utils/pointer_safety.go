// Package utils holds small generic helpers for optional fields.
package utils

// Value dereferences v, yielding the zero value for nil.
func Value[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

// Ptr returns a pointer to a copy of v. Patch fields are pointers so that
// "unset" and "zero" differ.
func Ptr[T any](v T) *T {
	return &v
}
