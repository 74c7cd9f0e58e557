package sorter

// pairKey is the canonical, order-independent key of a comparison. Keeping
// both labels as struct fields means no separator can ever collide with
// label content.
type pairKey struct {
	lo, hi string
}

// keyFor returns the canonical key and whether (a, b) is the reverse of the
// canonical order.
func keyFor(a, b string) (pairKey, bool) {
	if b < a {
		return pairKey{lo: b, hi: a}, true
	}
	return pairKey{lo: a, hi: b}, false
}

// decisionCache holds every answer of one run, oriented to the canonical
// order so a lookup in either direction yields the right sign.
type decisionCache map[pairKey]int

func (c decisionCache) lookup(a, b string) (int, bool) {
	k, swapped := keyFor(a, b)
	v, ok := c[k]
	if !ok {
		return 0, false
	}
	if swapped {
		v = -v
	}
	return v, true
}

func (c decisionCache) store(a, b string, v int) {
	k, swapped := keyFor(a, b)
	if swapped {
		v = -v
	}
	c[k] = v
}
