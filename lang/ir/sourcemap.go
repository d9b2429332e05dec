package ir

import "golang.org/x/exp/slices"

// sortEntries orders a source map's entries ascending by IR address.
func sortEntries(entries []SourceEntry) {
	slices.SortFunc(entries, func(a, b SourceEntry) int {
		return a.IRAddr - b.IRAddr
	})
}

// searchEntries returns the index of the entry with the greatest IRAddr
// not exceeding addr, or -1 if none qualifies.
func searchEntries(entries []SourceEntry, addr int) int {
	i, found := slices.BinarySearchFunc(entries, addr, func(e SourceEntry, target int) int {
		return e.IRAddr - target
	})
	if found {
		return i
	}
	// i is the insertion point: the first entry whose IRAddr > addr, so the
	// qualifying entry (if any) is the one immediately before it.
	if i == 0 {
		return -1
	}
	return i - 1
}
