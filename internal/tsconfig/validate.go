package tsconfig

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/conneroisu/pkgbuild/internal/reporter"
)

// Baseline is the target/module pair the standard package build expects.
type Baseline struct {
	Target string
	Module string
}

// DefaultBaseline matches the arguments the standard package build passes
// to tsc.
var DefaultBaseline = Baseline{Target: "es2018", Module: "esnext"}

// Validate compares cfg against baseline and reports one warning per
// mismatch. A mismatch is advisory: the build carries on. The warnings are
// also returned.
func Validate(cfg *CompilerConfig, baseline Baseline, rep reporter.Reporter) []string {
	var warnings []string

	check := func(option, want, got string) {
		if strings.EqualFold(want, got) {
			return
		}
		found := got
		if found == "" {
			found = "unset"
		}
		warnings = append(warnings, fmt.Sprintf(
			"%s [compilerOptions.%s] should be %q, but found %q. You may encounter problems building.",
			filepath.Base(cfg.Path), option, want, found))
	}

	check("target", baseline.Target, cfg.Target())
	check("module", baseline.Module, cfg.Module())

	if rep != nil {
		for _, w := range warnings {
			rep.Warning(w)
		}
	}
	return warnings
}
