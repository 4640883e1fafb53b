package config

import (
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
)

// KeyInfo describes one configuration key the client understands.
type KeyInfo struct {
	Key         string // dotted path, e.g. "storage.driver"
	Description string
	Type        string      // "string", "int", "duration", ...
	Default     interface{} // nil means no default
	Deprecated  bool
	ReplacedBy  string
}

var (
	registry   = make(map[string]KeyInfo)
	registryMu sync.RWMutex
)

// RegisterKeys adds keys to the registry, replacing earlier entries with the
// same path.
func RegisterKeys(infos ...KeyInfo) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, info := range infos {
		registry[info.Key] = info
	}
}

// RegisterDeprecatedKey records that oldKey was renamed to newKey. Loading
// oldKey then produces a warning pointing at newKey.
func RegisterDeprecatedKey(oldKey, newKey string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[oldKey] = KeyInfo{
		Key:        oldKey,
		Deprecated: true,
		ReplacedBy: newKey,
	}
}

// LookupKey returns the registry entry for key, matched exactly.
func LookupKey(key string) (KeyInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, exists := registry[key]
	return info, exists
}

// AllRegisteredKeys lists every registered path in sorted order.
func AllRegisteredKeys() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	keys := make([]string, 0, len(registry))
	for k := range registry {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Defaults collects the default of every live key that has one.
func Defaults() map[string]interface{} {
	registryMu.RLock()
	defer registryMu.RUnlock()

	defaults := make(map[string]interface{})
	for key, info := range registry {
		if info.Default != nil && !info.Deprecated {
			defaults[key] = info.Default
		}
	}
	return defaults
}

// FindSimilarKeys suggests up to maxResults registered keys for a misspelled
// one, closest first. Candidates are within an edit distance of 3, and a key
// in the same section gets one edit for free.
func FindSimilarKeys(key string, maxResults int) []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	type scored struct {
		key   string
		score int
	}

	var candidates []scored
	keyPrefix := getPrefix(key)

	for registeredKey, info := range registry {
		if registeredKey == key || info.Deprecated {
			continue
		}
		score := similarity(key, registeredKey, keyPrefix)
		if score <= 3 {
			candidates = append(candidates, scored{registeredKey, score})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score == candidates[j].score {
			return candidates[i].key < candidates[j].key
		}
		return candidates[i].score < candidates[j].score
	})

	result := make([]string, 0, maxResults)
	for i := 0; i < len(candidates) && i < maxResults; i++ {
		result = append(result, candidates[i].key)
	}
	return result
}

func similarity(key1, key2, key1Prefix string) int {
	distance := levenshtein.ComputeDistance(key1, key2)
	if key1Prefix != "" && key1Prefix == getPrefix(key2) && distance > 0 {
		distance--
	}
	return distance
}

// getPrefix returns the section of a dotted key, "api" for "api.timeout".
func getPrefix(key string) string {
	lastDot := strings.LastIndex(key, ".")
	if lastDot == -1 {
		return ""
	}
	return key[:lastDot]
}
