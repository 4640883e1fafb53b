package config

import (
	"github.com/knadh/koanf/v2"
)

// ApplyDefaults sets registered default values for keys that don't already
// exist in k. Safe to call more than once; explicit values always win.
func ApplyDefaults(k *koanf.Koanf) {
	for key, val := range Defaults() {
		if !k.Exists(key) {
			_ = k.Set(key, val)
		}
	}
}
