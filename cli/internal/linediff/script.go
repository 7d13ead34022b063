package linediff

import "fmt"

// Op is the kind of an edit operation.
type Op int

// Edit operations from old lines to new lines.
const (
	OpEqual Op = iota
	OpInsert
	OpDelete
)

// String returns "equal", "insert" or "delete".
func (o Op) String() string {
	switch o {
	case OpEqual:
		return "equal"
	case OpInsert:
		return "insert"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Range is a half-open span [Start, End) of 0-based line positions.
type Range struct {
	Start int
	End   int
}

// Len returns the number of lines in r.
func (r Range) Len() int { return r.End - r.Start }

// Edit is one operation of a Script.
//
//   - OpEqual: Old and New have the same length and the lines are equal pairwise.
//   - OpInsert: Old is empty and positioned where the insertion happens.
//   - OpDelete: New is empty and positioned where the deletion happens.
type Edit struct {
	Op  Op
	Old Range
	New Range
}

// Script is an ordered edit script. Invariants:
//   - Old ranges are contiguous, start at 0 and end at len(old).
//   - New ranges are contiguous, start at 0 and end at len(new).
//   - No two adjacent edits have the same Op.
//   - Within a change, a Delete always precedes the Insert it pairs with.
type Script []Edit

// Inserted returns the number of inserted lines.
func (s Script) Inserted() int {
	n := 0
	for _, e := range s {
		if e.Op == OpInsert {
			n += e.New.Len()
		}
	}
	return n
}

// Deleted returns the number of deleted lines.
func (s Script) Deleted() int {
	n := 0
	for _, e := range s {
		if e.Op == OpDelete {
			n += e.Old.Len()
		}
	}
	return n
}

// Cost returns Inserted()+Deleted(), the quantity the algorithm minimizes.
func (s Script) Cost() int { return s.Inserted() + s.Deleted() }

// Validate checks the Script invariants against sequence lengths n (old) and
// m (new). It is used by tests and by callers that build scripts by hand.
func (s Script) Validate(n, m int) error {
	oldPos, newPos := 0, 0
	for i, e := range s {
		if e.Old.Start != oldPos || e.New.Start != newPos {
			return fmt.Errorf("edit %d (%s) starts at old=%d new=%d, want old=%d new=%d", i, e.Op, e.Old.Start, e.New.Start, oldPos, newPos)
		}
		if i > 0 && s[i-1].Op == e.Op {
			return fmt.Errorf("edits %d and %d are both %s", i-1, i, e.Op)
		}
		switch e.Op {
		case OpEqual:
			if e.Old.Len() != e.New.Len() || e.Old.Len() == 0 {
				return fmt.Errorf("equal edit %d has lengths %d/%d", i, e.Old.Len(), e.New.Len())
			}
		case OpInsert:
			if e.Old.Len() != 0 || e.New.Len() == 0 {
				return fmt.Errorf("insert edit %d has lengths %d/%d", i, e.Old.Len(), e.New.Len())
			}
			if i+1 < len(s) && s[i+1].Op == OpDelete {
				return fmt.Errorf("insert edit %d is followed by a delete", i)
			}
		case OpDelete:
			if e.New.Len() != 0 || e.Old.Len() == 0 {
				return fmt.Errorf("delete edit %d has lengths %d/%d", i, e.Old.Len(), e.New.Len())
			}
		default:
			return fmt.Errorf("edit %d has unknown op %d", i, int(e.Op))
		}
		oldPos, newPos = e.Old.End, e.New.End
	}
	if oldPos != n || newPos != m {
		return fmt.Errorf("script ends at old=%d new=%d, want old=%d new=%d", oldPos, newPos, n, m)
	}
	return nil
}
