// Package dotpath implements dotted-path addressing over nested
// map[string]any trees. Paths like "hp.max" name a leaf inside the
// nested structure; intermediate maps are created on write.
package dotpath

import "strings"

// Get returns the value addressed by path and whether it exists.
func Get(tree map[string]any, path string) (any, bool) {
	if tree == nil || path == "" {
		return nil, false
	}

	parts := strings.Split(path, ".")
	current := tree
	for i, part := range parts {
		value, ok := current[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return value, true
		}
		next, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		current = next
	}

	return nil, false
}

// Set writes value at path, creating intermediate maps as needed. A
// non-map intermediate value is replaced by a map.
func Set(tree map[string]any, path string, value any) {
	if tree == nil || path == "" {
		return
	}

	parts := strings.Split(path, ".")
	current := tree
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// Delete removes the value addressed by path. It reports whether a
// value was present. Empty intermediate maps are left in place.
func Delete(tree map[string]any, path string) bool {
	if tree == nil || path == "" {
		return false
	}

	parts := strings.Split(path, ".")
	current := tree
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			return false
		}
		current = next
	}

	last := parts[len(parts)-1]
	if _, ok := current[last]; !ok {
		return false
	}
	delete(current, last)
	return true
}

// Flatten converts a nested tree into a flat map keyed by dotted
// paths. Non-map leaves (including slices) are kept as-is.
func Flatten(tree map[string]any) map[string]any {
	flat := make(map[string]any)
	flattenInto("", tree, flat)
	return flat
}

func flattenInto(prefix string, value any, acc map[string]any) {
	nested, ok := value.(map[string]any)
	if !ok || len(nested) == 0 {
		if prefix != "" {
			acc[prefix] = value
		}
		return
	}
	for key, child := range nested {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		flattenInto(path, child, acc)
	}
}

// Expand is the inverse of Flatten: it converts a flat map keyed by
// dotted paths into a nested tree. Later keys overwrite earlier ones
// when paths collide.
func Expand(flat map[string]any) map[string]any {
	tree := make(map[string]any, len(flat))
	for path, value := range flat {
		Set(tree, path, value)
	}
	return tree
}
