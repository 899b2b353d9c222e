package shader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/naga"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// ErrCompilerLimitation marks valid WGSL that the pinned naga release cannot lower yet.
var ErrCompilerLimitation = errors.New("naga limitation")

// compilerLimitations are substrings of naga errors raised for features it has not implemented.
var compilerLimitations = []string{
	"not yet implemented",
	"not supported",
	"runtime-sized arrays",
	"lowering error",
	"atomic",
	"ir.ExprRelational",
}

// IsCompilerLimitation reports whether err came from a naga feature gap rather than a shader bug.
func IsCompilerLimitation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCompilerLimitation) {
		return true
	}
	msg := err.Error()
	for _, known := range compilerLimitations {
		if strings.Contains(msg, known) {
			return true
		}
	}
	return false
}

// Validate compiles expanded WGSL to SPIR-V with naga and checks the module header.
// It runs on the CPU, so shaders can be checked without a GPU.
//
// Parameters:
//   - source: expanded WGSL source
//
// Returns:
//   - error: the compiler error, wrapping ErrCompilerLimitation for known naga gaps, or an error if
//     the output is not a SPIR-V module
func Validate(source string) error {
	spirv, err := naga.Compile(source)
	if err != nil {
		if IsCompilerLimitation(err) {
			return fmt.Errorf("%w: %w", ErrCompilerLimitation, err)
		}
		return fmt.Errorf("naga: %w", err)
	}
	if len(spirv) < 4 || binary.LittleEndian.Uint32(spirv) != spirvMagic {
		return fmt.Errorf("naga produced %d bytes without a SPIR-V header", len(spirv))
	}
	return nil
}

// ValidateAsset expands and validates one embedded shader.
func ValidateAsset(name string) error {
	src, err := Expand(name)
	if err != nil {
		return err
	}
	if err := Validate(src); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
