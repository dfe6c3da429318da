package engine

// Cursor is a clamped position over an ordered step list. It never wraps.
// The zero value is an empty cursor. Cursor is not safe for concurrent use;
// the Navigator guards it.
type Cursor struct {
	index int
	total int
}

// NewCursor returns a cursor at index 0 over total steps. Negative totals
// are treated as empty.
func NewCursor(total int) *Cursor {
	if total < 0 {
		total = 0
	}
	return &Cursor{total: total}
}

// SetIndex clamps i to [0, total-1] and reports whether the index moved.
// It is a no-op on an empty cursor.
func (c *Cursor) SetIndex(i int) bool {
	if c.total == 0 {
		return false
	}
	if i < 0 {
		i = 0
	}
	if i > c.total-1 {
		i = c.total - 1
	}
	if i == c.index {
		return false
	}
	c.index = i
	return true
}

// Advance moves forward one step, saturating at the last step.
func (c *Cursor) Advance() bool { return c.SetIndex(c.index + 1) }

// Retreat moves back one step, saturating at the first step.
func (c *Cursor) Retreat() bool { return c.SetIndex(c.index - 1) }

// Reset moves to the first step.
func (c *Cursor) Reset() bool { return c.SetIndex(0) }

// Index returns the current position.
func (c *Cursor) Index() int { return c.index }

// Total returns the number of steps.
func (c *Cursor) Total() int { return c.total }

// IsComplete is true on the last step of a non-empty list.
func (c *Cursor) IsComplete() bool {
	return c.total > 0 && c.index == c.total-1
}
