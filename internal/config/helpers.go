package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/iancoleman/strcase"
)

// EnvPrefix is the prefix for environment variables that map to config keys.
const EnvPrefix = "ESCALA__"

// SearchForConfig recursively searches for a config file starting from startDir
// and walking up the directory tree until found or reaching the root.
func SearchForConfig(filename string, startDir string) string {
	d, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}

	p := filepath.Join(d, filename)
	if _, err = os.Stat(p); err == nil {
		return p
	}

	parentDir := filepath.Dir(d)
	if parentDir == d {
		return ""
	}
	return SearchForConfig(filename, parentDir)
}

// TransformEnv converts ESCALA__API__BASE_URL to api.baseUrl.
//   - Remove the ESCALA__ prefix
//   - Double underscores (__) become dots (.)
//   - Each segment is converted to lowerCamelCase
//
// Keys are matched case-insensitively by Normalize, so api.baseUrl resolves
// to the registered api.baseURL.
func TransformEnv(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	segments := strings.Split(strings.ToLower(s), "__")
	for i, segment := range segments {
		segments[i] = strcase.ToLowerCamel(segment)
	}
	return Normalize(strings.Join(segments, "."))
}

// Normalize maps a key to the registered spelling when they only differ by
// case, otherwise the key is returned as is.
func Normalize(key string) string {
	if _, ok := LookupKey(key); ok {
		return key
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	for registered := range registry {
		if strings.EqualFold(registered, key) {
			return registered
		}
	}
	return key
}
