package types

import "fmt"

// A Dictionary holds the levels of a Category column. The index of a level is
// its category code. Each Category column owns its dictionary.
type Dictionary struct {
	Levels  []string
	Ordered bool
}

func NewDictionary(levels []string, ordered bool) *Dictionary {
	cp := make([]string, len(levels))
	copy(cp, levels)
	return &Dictionary{Levels: cp, Ordered: ordered}
}

func (d *Dictionary) Len() int { return len(d.Levels) }

// Lookup returns the code of level, or false if level is not in d.
func (d *Dictionary) Lookup(level string) (int, bool) {
	for i, l := range d.Levels {
		if l == level {
			return i, true
		}
	}
	return 0, false
}

// codes maps each level to its code. A repeated level keeps its first code,
// as Lookup does.
func (d *Dictionary) codes() map[string]int {
	m := make(map[string]int, len(d.Levels))
	for i, l := range d.Levels {
		if _, ok := m[l]; !ok {
			m[l] = i
		}
	}
	return m
}

// Validate checks that levels are distinct.
func (d *Dictionary) Validate() error {
	seen := make(map[string]int, len(d.Levels))
	for i, l := range d.Levels {
		if j, ok := seen[l]; ok {
			return fmt.Errorf("duplicate level %q at positions %d and %d", l, j, i)
		}
		seen[l] = i
	}
	return nil
}
