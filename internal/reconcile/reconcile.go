// Package reconcile computes keyed joins between an old and a new collection
// of visual items, so charts update elements in place instead of redrawing.
package reconcile

// Plan lists the keys to add, keep and remove.
// Enter and Update follow the order of the new collection, Exit the order of the old one.
type Plan[K comparable] struct {
	Enter  []K `json:"enter"`
	Update []K `json:"update"`
	Exit   []K `json:"exit"`
}

// Empty reports whether the plan changes nothing structurally and keeps nothing
func (p Plan[K]) Empty() bool {
	return len(p.Enter) == 0 && len(p.Update) == 0 && len(p.Exit) == 0
}

// Diff matches old and new by key. Duplicate keys in either input are counted once.
func Diff[K comparable](oldKeys, newKeys []K) Plan[K] {
	inOld := make(map[K]bool, len(oldKeys))
	for _, k := range oldKeys {
		inOld[k] = true
	}
	inNew := make(map[K]bool, len(newKeys))

	var plan Plan[K]
	for _, k := range newKeys {
		if inNew[k] {
			continue
		}
		inNew[k] = true
		if inOld[k] {
			plan.Update = append(plan.Update, k)
		} else {
			plan.Enter = append(plan.Enter, k)
		}
	}

	seenOld := make(map[K]bool, len(oldKeys))
	for _, k := range oldKeys {
		if seenOld[k] {
			continue
		}
		seenOld[k] = true
		if !inNew[k] {
			plan.Exit = append(plan.Exit, k)
		}
	}
	return plan
}

// Keys extracts keys from items in order
func Keys[T any, K comparable](items []T, key func(T) K) []K {
	keys := make([]K, len(items))
	for i, it := range items {
		keys[i] = key(it)
	}
	return keys
}
