package config

import "testing"

func TestDefaults(t *testing.T) {
	opts := Default()
	if !opts.EnableRTTI {
		t.Errorf("RTTI should default on")
	}
	if !opts.NumberIsF64 {
		t.Errorf("number should default to f64")
	}
	if opts.EnableAsync {
		t.Errorf("async should default off")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	data := []byte(`
enable_rtti = false
all_methods_virtual = true
enable_async = true
win_exception = true
replace_trampoline_with_bound_function = true
`)
	opts, err := Load(data)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if opts.EnableRTTI {
		t.Errorf("enable_rtti override ignored")
	}
	if !opts.AllMethodsVirtual || !opts.EnableAsync || !opts.WinException {
		t.Errorf("overrides not applied: %+v", opts)
	}
	if !opts.ReplaceTrampolineWithBoundFunction {
		t.Errorf("trampoline replacement override ignored")
	}
	// Untouched keys keep their defaults.
	if !opts.ModuleAsNamespace {
		t.Errorf("module_as_namespace default lost")
	}
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	if _, err := Load([]byte("enable_rtti = {")); err == nil {
		t.Fatalf("malformed TOML must fail")
	}
}
