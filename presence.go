package dynskema

import (
	"strconv"
	"strings"
)

// Presence is the bit flag collected by BuildWithMeta.
type Presence uint8

const (
	PresenceSeen           Presence = 1 << iota // Attribute was assigned.
	PresenceWasNull                             // Assigned value was nil.
	PresenceDefaultApplied                      // Value came from an un-overridden default.
)

// PresenceMap maps JSON Pointers (external names and array indices) to
// Presence flags.
type PresenceMap map[string]Presence

// Has reports whether every bit of flag is set at pointer.
func (pm PresenceMap) Has(pointer string, flag Presence) bool {
	return pm[pointer]&flag == flag
}

// Built carries a value tree along with presence metadata.
type Built struct {
	Value    map[string]any
	Presence PresenceMap
}

func (r *Receiver) collectPresence(prefix string, pm PresenceMap) {
	for _, key := range r.schema.Keys() {
		v, ok := r.values[key]
		if !ok {
			continue
		}
		c, _ := r.schema.Lookup(key)
		p := prefix + "/" + EscapePointer(c.Name())
		flag := PresenceSeen
		if v == nil {
			flag |= PresenceWasNull
		}
		if r.defaulted[key] {
			flag |= PresenceDefaultApplied
		}
		pm[p] |= flag
		collectPresenceRecurse(v, p, pm)
	}
}

func collectPresenceRecurse(v any, cur string, pm PresenceMap) {
	switch t := v.(type) {
	case *Receiver:
		t.collectPresence(cur, pm)
	case []any:
		for i, val := range t {
			p := cur + "/" + strconv.Itoa(i)
			pm[p] |= PresenceSeen
			collectPresenceRecurse(val, p, pm)
		}
	}
}

var pointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// EscapePointer escapes a JSON Pointer reference token (RFC 6901).
func EscapePointer(s string) string { return pointerEscaper.Replace(s) }
