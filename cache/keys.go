package cache

import (
	"crypto/md5"
	"fmt"
	"sort"
	"strings"
)

// KeyFor builds a stable key from an endpoint path and its parameters.
// Parameters are sorted before joining so that semantically identical
// requests collide on the same key regardless of the order the caller
// supplied options in. The path prefix keeps endpoint namespaces disjoint.
func KeyFor(path string, params map[string]string) string {
	if len(params) == 0 {
		return path
	}

	parts := make([]string, 0, len(params))
	for k, v := range params {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)

	key := path + "?" + strings.Join(parts, "&")

	// Hash very long keys to keep them bounded
	if len(key) > 200 {
		hash := md5.Sum([]byte(key))
		return fmt.Sprintf("%s#%x", path, hash)
	}

	return key
}
