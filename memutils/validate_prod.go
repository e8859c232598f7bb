//go:build !debug_mem_utils

package memutils

import "golang.org/x/exp/constraints"

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_mem_utils build tag is present
func DebugValidate(validatable Validatable) {
}

// DebugCheckPow2 will verify that the numerical value passed in is a power of two, and panics if it is not.
// This method no-ops unless the debug_mem_utils build tag is present.
func DebugCheckPow2[T constraints.Integer](value T, name string) {
}

// DebugCheckAligned will verify that value sits on a multiple of alignment, and panics if it does not.
// This method no-ops unless the debug_mem_utils build tag is present.
func DebugCheckAligned[T constraints.Unsigned](value T, alignment T, name string) {
}
