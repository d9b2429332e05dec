// Package config loads the runtime resource limits the CLI applies to a
// vm.Machine, env-var driven the way the ambient stack expects (spec.md
// §5 "Resource limits"), using the same caarlos0/env struct-tag approach
// as the rest of the corpus reaches for whenever configuration needs to
// come from the environment rather than flags.
package config

import (
	"github.com/caarlos0/env/v6"
)

// Runtime holds the limits a Machine enforces while executing a program.
// Zero values mean "no limit", matching vm.Machine.MaxSteps/MaxStack.
type Runtime struct {
	MaxSteps int64 `env:"BLIK_MAX_STEPS" envDefault:"0"`
	MaxStack int   `env:"BLIK_MAX_STACK" envDefault:"0"`
}

// Load reads Runtime from the process environment.
func Load() (Runtime, error) {
	var rt Runtime
	if err := env.Parse(&rt); err != nil {
		return Runtime{}, err
	}
	return rt, nil
}
