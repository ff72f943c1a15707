// Package env reads raw process environment values for the few knobs that
// must resolve before config loading.
package env

import "os"

// Get looks up key in the process environment; unset and empty both yield the
// fallback.
func Get(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
