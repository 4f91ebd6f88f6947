package algorithms

// =============================================================================
// Active Node Scheduling
// =============================================================================
//
// The preflow-push engine keeps the set of overflowing nodes in a Scheduler.
// The engine decides whether a node is eligible; the scheduler only decides
// the order in which eligible nodes are handed back.
//
// Implementations:
//   - FIFOScheduler: arrival order
//   - HighestLabelScheduler: largest distance label first
// =============================================================================

// Scheduler holds the active nodes of a preflow-push run.
type Scheduler interface {
	// Reset empties the scheduler and sizes it for n nodes.
	Reset(n int)

	// Enqueue adds u, whose current distance label is distance. Enqueueing a
	// node that is already scheduled is a no-op.
	Enqueue(u, distance int)

	// PopNext removes and returns the next node to discharge.
	PopNext() (int, bool)

	// IsScheduled reports whether u is currently held.
	IsScheduled(u int) bool

	// Len returns the number of scheduled nodes.
	Len() int
}

// =============================================================================
// FIFO Scheduler
// =============================================================================

// FIFOScheduler hands nodes back in arrival order. A membership flag keeps
// every node in the queue at most once.
type FIFOScheduler struct {
	queue   []int
	head    int
	inQueue []bool
}

// NewFIFOScheduler creates a FIFO scheduler for n nodes.
func NewFIFOScheduler(n int) *FIFOScheduler {
	s := &FIFOScheduler{}
	s.Reset(n)
	return s
}

// Reset empties the queue.
func (s *FIFOScheduler) Reset(n int) {
	if cap(s.inQueue) < n {
		s.inQueue = make([]bool, n)
		s.queue = make([]int, 0, n)
	} else {
		s.inQueue = s.inQueue[:n]
		clear(s.inQueue)
		s.queue = s.queue[:0]
	}
	s.head = 0
}

// Enqueue appends u unless it is already queued.
func (s *FIFOScheduler) Enqueue(u, _ int) {
	if s.inQueue[u] {
		return
	}
	s.inQueue[u] = true
	s.queue = append(s.queue, u)
}

// PopNext removes the oldest node.
func (s *FIFOScheduler) PopNext() (int, bool) {
	if s.head >= len(s.queue) {
		return -1, false
	}
	u := s.queue[s.head]
	s.head++
	s.inQueue[u] = false

	// Reuse the backing array once drained.
	if s.head == len(s.queue) {
		s.queue = s.queue[:0]
		s.head = 0
	}
	return u, true
}

// IsScheduled reports whether u is queued.
func (s *FIFOScheduler) IsScheduled(u int) bool {
	return s.inQueue[u]
}

// Len returns the queue length.
func (s *FIFOScheduler) Len() int {
	return len(s.queue) - s.head
}

// =============================================================================
// Highest Label Scheduler
// =============================================================================

// HighestLabelScheduler partitions nodes into buckets by distance label and
// always hands back a node from the highest non-empty bucket. Within a bucket
// the most recently added node comes first.
//
// The label recorded at Enqueue time is used for ordering; a node whose label
// changes while it waits keeps its old bucket.
type HighestLabelScheduler struct {
	buckets  [][]int // buckets[d] = nodes enqueued with label d
	inBucket []bool
	high     int // no bucket above high is non-empty
	count    int
}

// NewHighestLabelScheduler creates a highest-label scheduler for n nodes with
// buckets for labels 0..n.
func NewHighestLabelScheduler(n int) *HighestLabelScheduler {
	s := &HighestLabelScheduler{}
	s.Reset(n)
	return s
}

// Reset empties all buckets.
func (s *HighestLabelScheduler) Reset(n int) {
	if len(s.buckets) != n+1 {
		s.buckets = make([][]int, n+1)
	} else {
		for d := range s.buckets {
			s.buckets[d] = s.buckets[d][:0]
		}
	}
	if cap(s.inBucket) < n {
		s.inBucket = make([]bool, n)
	} else {
		s.inBucket = s.inBucket[:n]
		clear(s.inBucket)
	}
	s.high = 0
	s.count = 0
}

// Enqueue places u into the bucket for distance and raises the high-water
// index when needed.
func (s *HighestLabelScheduler) Enqueue(u, distance int) {
	if s.inBucket[u] {
		return
	}
	if distance >= len(s.buckets) {
		distance = len(s.buckets) - 1
	}
	s.buckets[distance] = append(s.buckets[distance], u)
	s.inBucket[u] = true
	s.count++
	if distance > s.high {
		s.high = distance
	}
}

// PopNext removes a node from the highest non-empty bucket.
func (s *HighestLabelScheduler) PopNext() (int, bool) {
	for {
		bucket := s.buckets[s.high]
		if n := len(bucket); n > 0 {
			u := bucket[n-1]
			s.buckets[s.high] = bucket[:n-1]
			s.inBucket[u] = false
			s.count--
			return u, true
		}
		if s.high == 0 {
			return -1, false
		}
		s.high--
	}
}

// IsScheduled reports whether u sits in some bucket.
func (s *HighestLabelScheduler) IsScheduled(u int) bool {
	return s.inBucket[u]
}

// Len returns the number of scheduled nodes.
func (s *HighestLabelScheduler) Len() int {
	return s.count
}
