package operators

// Set is an immutable allow-list of operator user ids, built once at
// startup. Operator-only commands are silently ignored for everyone else.
type Set struct {
	ids map[int64]struct{}
}

func NewSet(ids []int64) *Set {
	s := &Set{ids: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// IsOperator reports whether the user may use operator commands.
func (s *Set) IsOperator(userID int64) bool {
	_, ok := s.ids[userID]
	return ok
}

// Count returns the allow-list size.
func (s *Set) Count() int {
	return len(s.ids)
}
