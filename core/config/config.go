package config

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// cache stores one loaded value per configuration type.
	cache sync.Map // reflect.Type -> any

	// dotenvOnce loads .env files a single time per process.
	dotenvOnce sync.Once
)

// Load parses environment variables into the given configuration struct.
// Each configuration type is loaded once per process and cached; subsequent
// calls for the same type return the cached value. A .env file in the working
// directory is loaded on first use if present.
func Load[T any](cfg *T) error {
	if cfg == nil {
		return fmt.Errorf("config: nil target")
	}

	dotenvOnce.Do(func() {
		// Missing .env is not an error; real environments set variables directly.
		_ = godotenv.Load()
	})

	t := reflect.TypeOf(*cfg)
	if cached, ok := cache.Load(t); ok {
		*cfg = cached.(T)
		return nil
	}

	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", t.Name(), err)
	}

	actual, _ := cache.LoadOrStore(t, *cfg)
	*cfg = actual.(T)
	return nil
}

// MustLoad is like Load but panics on failure. Intended for process startup
// where a missing required variable should abort immediately.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}
