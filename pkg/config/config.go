// Package config holds the compiler options and their TOML loading.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml"
)

// Options are the feature switches of the lowering core. Every flag is
// named; its effect is fixed.
type Options struct {
	// EnableRTTI emits the `.rtti` string and `.instanceof()` method on
	// classes.
	EnableRTTI bool `toml:"enable_rtti"`
	// AllMethodsVirtual gives every non-constructor method a virtual slot.
	AllMethodsVirtual bool `toml:"all_methods_virtual"`
	// UseBoundFunctionForObjects uses bound-function in place of
	// trampolines for object methods.
	UseBoundFunctionForObjects bool `toml:"use_bound_function_for_objects"`
	// EnableAsync honors async/await/for-await.
	EnableAsync bool `toml:"enable_async"`
	// EnableGC emits the GC attribute on closure-bearing functions.
	EnableGC bool `toml:"enable_gc"`
	// WinException selects the Windows RTTI helper for try/throw.
	WinException bool `toml:"win_exception"`
	// ModuleAsNamespace treats `module { ... }` declarations as namespaces.
	ModuleAsNamespace bool `toml:"module_as_namespace"`
	// ReplaceTrampolineWithBoundFunction never emits trampolines.
	ReplaceTrampolineWithBoundFunction bool `toml:"replace_trampoline_with_bound_function"`
	// NumberIsF64 uses 64-bit floating-point for `number`; otherwise 32-bit.
	NumberIsF64 bool `toml:"number_is_f64"`
}

// Default returns the options a bare invocation runs with.
func Default() *Options {
	return &Options{
		EnableRTTI:        true,
		ModuleAsNamespace: true,
		NumberIsF64:       true,
	}
}

// LoadFile reads a tsgen.toml options file over the defaults.
func LoadFile(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Load(data)
}

// Load parses TOML option bytes over the defaults.
func Load(data []byte) (*Options, error) {
	opts := Default()
	if err := toml.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return opts, nil
}
