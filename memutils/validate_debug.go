//go:build debug_mem_utils

package memutils

import "golang.org/x/exp/constraints"

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_mem_utils build tag is present
func DebugValidate(validatable Validatable) {
	err := validatable.Validate()
	if err != nil {
		panic(err)
	}
}

// DebugCheckPow2 will verify that the numerical value passed in is a power of two, and panics if it is not.
// This method no-ops unless the debug_mem_utils build tag is present.
func DebugCheckPow2[T constraints.Integer](value T, name string) {
	err := CheckPow2(value, name)
	if err != nil {
		panic(err)
	}
}

// DebugCheckAligned will verify that value sits on a multiple of alignment, and panics if it does not.
// This method no-ops unless the debug_mem_utils build tag is present.
func DebugCheckAligned[T constraints.Unsigned](value T, alignment T, name string) {
	err := CheckAligned(value, alignment, name)
	if err != nil {
		panic(err)
	}
}
