package trigger

// Armed triggers are bucketed by direction into limit-price ladders so a
// price update only visits triggers that actually fire, instead of scanning
// the whole armed set. Use container/heap to manipulate (Init, Push, Pop).

type ladderEntry struct {
	limit uint64
	id    uint64 // trigger id
}

// lowerLadder orders "fires below limit" triggers with the highest limit on
// top: those are the first to satisfy price < limit as price falls.
type lowerLadder []ladderEntry

func (h lowerLadder) Len() int           { return len(h) }
func (h lowerLadder) Less(i, j int) bool { return h[i].limit > h[j].limit } // Max heap
func (h lowerLadder) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *lowerLadder) Push(x interface{}) {
	*h = append(*h, x.(ladderEntry))
}

func (h *lowerLadder) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// Peek returns the top entry without removing it
func (h lowerLadder) Peek() (ladderEntry, bool) {
	if len(h) == 0 {
		return ladderEntry{}, false
	}
	return h[0], true
}

// upperLadder orders "fires above limit" triggers with the lowest limit on top.
type upperLadder []ladderEntry

func (h upperLadder) Len() int           { return len(h) }
func (h upperLadder) Less(i, j int) bool { return h[i].limit < h[j].limit } // Min heap
func (h upperLadder) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *upperLadder) Push(x interface{}) {
	*h = append(*h, x.(ladderEntry))
}

func (h *upperLadder) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

// Peek returns the top entry without removing it
func (h upperLadder) Peek() (ladderEntry, bool) {
	if len(h) == 0 {
		return ladderEntry{}, false
	}
	return h[0], true
}
