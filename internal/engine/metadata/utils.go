// internal/engine/metadata/utils.go
package metadata

// Unique returns values in first-seen order with duplicates and empty strings
// removed.
func Unique(values []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(values))

	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		result = append(result, v)
	}

	return result
}
