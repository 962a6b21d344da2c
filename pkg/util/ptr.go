package util

// GetPtr returns a pointer to a copy of v.
func GetPtr[T any](v T) *T {
	return &v
}
