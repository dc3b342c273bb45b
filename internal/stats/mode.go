package stats

// Counter tallies categorical values and remembers the order in which each
// distinct value was first seen.
type Counter struct {
	counts map[string]int
	order  []string
}

func NewCounter() *Counter {
	return &Counter{counts: make(map[string]int)}
}

// Add counts v. Empty strings are missing values and are ignored.
func (c *Counter) Add(v string) {
	if v == "" {
		return
	}
	if _, seen := c.counts[v]; !seen {
		c.order = append(c.order, v)
	}
	c.counts[v]++
}

// Mode returns the most frequent value. Ties go to the value seen first.
func (c *Counter) Mode() (mode string, ok bool) {
	best := 0
	for _, v := range c.order {
		if n := c.counts[v]; n > best {
			best = n
			mode = v
		}
	}
	return mode, best > 0
}
