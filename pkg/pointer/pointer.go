// Package pointer converts between values and optional (nil-able) pointers,
// mostly for mapping nullable database columns.
package pointer

// To returns a pointer to a copy of value.
func To[T any](value T) *T {
	return &value
}

// Copy returns a pointer to a copy of *value, or nil when value is nil.
func Copy[T any](value *T) *T {
	if value == nil {
		return nil
	}
	return To(*value)
}

// IfValid returns a pointer to value when valid is true, and nil otherwise.
func IfValid[T any](valid bool, value T) *T {
	if !valid {
		return nil
	}
	return &value
}

// OrDefault returns value, or a pointer to defaultValue when value is nil.
func OrDefault[T any](value *T, defaultValue T) *T {
	if value != nil {
		return value
	}
	return &defaultValue
}

func String(value string) *string {
	return To(value)
}

func StringCopy(value *string) *string {
	return Copy(value)
}

func StringIfValid(valid bool, value string) *string {
	return IfValid(valid, value)
}

func StringOrDefault(value *string, defaultValue string) *string {
	return OrDefault(value, defaultValue)
}
