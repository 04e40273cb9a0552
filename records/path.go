package records

import (
	"strconv"
	"strings"
)

// setter is one step of a dotted path walk: a reference to the container
// holding the next value (a map or a slice) plus the key/index to reach it.
type setter struct {
	parent any
	key    string
}

// SetPath applies value at the dotted path (e.g. "a.b.3.c") inside root,
// creating missing intermediates as it walks: a missing intermediate is
// created as a list when the segment after it is all-digits, otherwise as a
// map. merge controls the leaf write: false replaces the
// leaf outright, true deep-merges maps, extends slices, and replaces any
// scalar. SetPath returns the (possibly reallocated) root.
func SetPath(root map[string]any, path string, value any, merge bool) map[string]any {
	segments := strings.Split(path, ".")
	var node any = root
	var chain []setter

	for i, seg := range segments {
		chain = append(chain, setter{parent: node, key: seg})
		if i == len(segments)-1 {
			break
		}
		node = descend(node, seg, isIndex(segments[i+1]))
	}

	leaf := chain[len(chain)-1]
	newValue := applyLeaf(leaf.parent, leaf.key, value, merge)
	node = newValue

	for i := len(chain) - 2; i >= 0; i-- {
		node = assign(chain[i].parent, chain[i].key, node)
	}
	return root
}

func isIndex(seg string) bool {
	if seg == "" {
		return false
	}
	for _, r := range seg {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// descend returns the existing child at parent[key] (creating it, shaped as
// a list if childIsIndex else a map, when absent) without mutating parent
// in place; the caller re-assigns it back up the chain after the leaf
// write.
func descend(parent any, key string, childIsIndex bool) any {
	switch p := parent.(type) {
	case map[string]any:
		if existing, ok := p[key]; ok {
			return existing
		}
		if childIsIndex {
			return []any{}
		}
		return map[string]any{}
	case []any:
		idx, _ := strconv.Atoi(key)
		if idx < len(p) && p[idx] != nil {
			return p[idx]
		}
		if childIsIndex {
			return []any{}
		}
		return map[string]any{}
	default:
		if childIsIndex {
			return []any{}
		}
		return map[string]any{}
	}
}

// assign writes child back into parent at key, growing a slice parent if
// key's index is beyond its current length, and returns parent (a slice
// grow may reallocate, so the caller must use the returned value).
func assign(parent any, key string, child any) any {
	switch p := parent.(type) {
	case map[string]any:
		p[key] = child
		return p
	case []any:
		idx, _ := strconv.Atoi(key)
		for idx >= len(p) {
			p = append(p, nil)
		}
		p[idx] = child
		return p
	default:
		return parent
	}
}

// applyLeaf writes value at parent[key], replacing outright or deep-merging
// per merge, and returns the updated container (the leaf's new parent, to
// be propagated back through assign).
func applyLeaf(parent any, key string, value any, merge bool) any {
	if !merge {
		return assign(parent, key, value)
	}

	existing := descend(parent, key, false)
	return assign(parent, key, mergeValue(existing, value))
}

// mergeValue deep-merges two values: maps merge key-by-key, slices
// concatenate, and anything else (including a type mismatch) is replaced by
// the incoming value.
func mergeValue(existing, incoming any) any {
	switch inc := incoming.(type) {
	case map[string]any:
		ex, ok := existing.(map[string]any)
		if !ok {
			ex = map[string]any{}
		}
		out := make(map[string]any, len(ex)+len(inc))
		for k, v := range ex {
			out[k] = v
		}
		for k, v := range inc {
			if existingChild, ok := out[k]; ok {
				out[k] = mergeValue(existingChild, v)
			} else {
				out[k] = v
			}
		}
		return out
	case []any:
		ex, ok := existing.([]any)
		if !ok {
			return inc
		}
		return append(append([]any{}, ex...), inc...)
	default:
		return incoming
	}
}
