package linediff

// Diff returns a minimal edit script that transforms oldLines into newLines.
//
// Degenerate inputs produce a single edit: empty oldLines yields one Insert,
// empty newLines one Delete, identical input one Equal. Two empty inputs yield
// an empty script.
func Diff(oldLines, newLines []Line) Script {
	a, b := intern(oldLines, newLines)
	d := &differ{
		a:          a,
		b:          b,
		oldChanged: make([]bool, len(a)),
		newChanged: make([]bool, len(b)),
	}
	d.compare(0, len(a), 0, len(b))
	return d.script()
}

// DiffTexts is Diff over plain strings.
func DiffTexts(oldTexts, newTexts []string) Script {
	return Diff(FromTexts(oldTexts), FromTexts(newTexts))
}

// intern maps every distinct line text to a small integer so the inner loops
// compare ints instead of strings.
func intern(oldLines, newLines []Line) ([]int, []int) {
	ids := make(map[string]int, len(oldLines))
	id := func(s string) int {
		v, ok := ids[s]
		if !ok {
			v = len(ids)
			ids[s] = v
		}
		return v
	}
	a := make([]int, len(oldLines))
	for i, l := range oldLines {
		a[i] = id(l.Text)
	}
	b := make([]int, len(newLines))
	for i, l := range newLines {
		b[i] = id(l.Text)
	}
	return a, b
}

// differ marks which old lines are deleted and which new lines are inserted.
// Unmarked lines on both sides form the longest common subsequence, paired in
// order.
type differ struct {
	a, b       []int
	oldChanged []bool
	newChanged []bool
}

// compare marks the changes between a[aLo:aHi] and b[bLo:bHi].
func (d *differ) compare(aLo, aHi, bLo, bHi int) {
	for aLo < aHi && bLo < bHi && d.a[aLo] == d.b[bLo] {
		aLo++
		bLo++
	}
	for aLo < aHi && bLo < bHi && d.a[aHi-1] == d.b[bHi-1] {
		aHi--
		bHi--
	}
	switch {
	case aLo == aHi:
		for j := bLo; j < bHi; j++ {
			d.newChanged[j] = true
		}
	case bLo == bHi:
		for i := aLo; i < aHi; i++ {
			d.oldChanged[i] = true
		}
	default:
		x, y, ok := d.bisect(aLo, aHi, bLo, bHi)
		if !ok {
			// No common line: everything in the window changed.
			for i := aLo; i < aHi; i++ {
				d.oldChanged[i] = true
			}
			for j := bLo; j < bHi; j++ {
				d.newChanged[j] = true
			}
			return
		}
		d.compare(aLo, x, bLo, y)
		d.compare(x, aHi, y, bHi)
	}
}

// bisect finds the middle snake of an optimal path through the edit graph of
// a[aLo:aHi] and b[bLo:bHi] by running the forward and reverse searches until
// they overlap. It returns the split point in absolute coordinates. Both
// windows must be non-empty and must not share a prefix or suffix.
func (d *differ) bisect(aLo, aHi, bLo, bHi int) (int, int, bool) {
	n, m := aHi-aLo, bHi-bLo
	maxD := (n + m + 1) / 2
	off := maxD
	size := 2*maxD + 2
	v1 := make([]int, size)
	v2 := make([]int, size)
	for i := range v1 {
		v1[i] = -1
		v2[i] = -1
	}
	v1[off+1] = 0
	v2[off+1] = 0
	delta := n - m
	// With an odd delta the paths meet during a forward step, otherwise
	// during a reverse step.
	front := delta%2 != 0
	var k1start, k1end, k2start, k2end int
	for step := 0; step < maxD; step++ {
		for k1 := -step + k1start; k1 <= step-k1end; k1 += 2 {
			i := off + k1
			var x1 int
			if k1 == -step || (k1 != step && v1[i-1] < v1[i+1]) {
				x1 = v1[i+1]
			} else {
				x1 = v1[i-1] + 1
			}
			y1 := x1 - k1
			for x1 < n && y1 < m && d.a[aLo+x1] == d.b[bLo+y1] {
				x1++
				y1++
			}
			v1[i] = x1
			switch {
			case x1 > n:
				k1end += 2
			case y1 > m:
				k1start += 2
			case front:
				j := off + delta - k1
				if j >= 0 && j < size && v2[j] != -1 && x1 >= n-v2[j] {
					return aLo + x1, bLo + y1, true
				}
			}
		}
		for k2 := -step + k2start; k2 <= step-k2end; k2 += 2 {
			i := off + k2
			var x2 int
			if k2 == -step || (k2 != step && v2[i-1] < v2[i+1]) {
				x2 = v2[i+1]
			} else {
				x2 = v2[i-1] + 1
			}
			y2 := x2 - k2
			for x2 < n && y2 < m && d.a[aHi-x2-1] == d.b[bHi-y2-1] {
				x2++
				y2++
			}
			v2[i] = x2
			switch {
			case x2 > n:
				k2end += 2
			case y2 > m:
				k2start += 2
			case !front:
				j := off + delta - k2
				if j >= 0 && j < size && v1[j] != -1 {
					x1 := v1[j]
					y1 := x1 - (j - off)
					if x1 >= n-x2 {
						return aLo + x1, bLo + y1, true
					}
				}
			}
		}
	}
	return 0, 0, false
}

// script turns the change marks into an edit script. Within a change, deleted
// lines are emitted before inserted ones.
func (d *differ) script() Script {
	n, m := len(d.a), len(d.b)
	var s Script
	i, j := 0, 0
	for i < n || j < m {
		switch {
		case i < n && d.oldChanged[i]:
			start := i
			for i < n && d.oldChanged[i] {
				i++
			}
			s = append(s, Edit{Op: OpDelete, Old: Range{start, i}, New: Range{j, j}})
		case j < m && d.newChanged[j]:
			start := j
			for j < m && d.newChanged[j] {
				j++
			}
			s = append(s, Edit{Op: OpInsert, Old: Range{i, i}, New: Range{start, j}})
		default:
			si, sj := i, j
			for i < n && j < m && !d.oldChanged[i] && !d.newChanged[j] {
				i++
				j++
			}
			s = append(s, Edit{Op: OpEqual, Old: Range{si, i}, New: Range{sj, j}})
		}
	}
	return s
}
