package batch

// IdentifierSet is the deduplicated view of a request.
type IdentifierSet struct {
	// Order lists each distinct identifier once, in first-seen order.
	Order []string

	// Positions maps an identifier to every index it occupied in the request.
	Positions map[string][]int

	total int
}

// Normalize deduplicates ids by exact string equality. Nothing is trimmed;
// an empty string is an identifier like any other.
func Normalize(ids []string) IdentifierSet {
	set := IdentifierSet{
		Order:     make([]string, 0, len(ids)),
		Positions: make(map[string][]int, len(ids)),
		total:     len(ids),
	}

	for i, id := range ids {
		if _, seen := set.Positions[id]; !seen {
			set.Order = append(set.Order, id)
		}
		set.Positions[id] = append(set.Positions[id], i)
	}

	return set
}

// Len returns the length of the original request.
func (s IdentifierSet) Len() int {
	return s.total
}

// UniqueCount returns the number of distinct identifiers.
func (s IdentifierSet) UniqueCount() int {
	return len(s.Order)
}

// DuplicatesRemoved returns how many positions were folded into an earlier one.
func (s IdentifierSet) DuplicatesRemoved() int {
	return s.total - len(s.Order)
}
