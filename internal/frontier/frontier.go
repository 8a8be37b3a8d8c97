// internal/frontier/frontier.go
package frontier

import (
	"sync"
)

// State tracks a URL's progress through the crawl.
type State int

const (
	// Discovered means the URL was seen on some page but not yet judged
	// worth fetching.
	Discovered State = iota
	// Queued means the URL passed its gate and awaits a fetch.
	Queued
	// Visited means the URL has been handed out for fetching.
	Visited
)

func (s State) String() string {
	switch s {
	case Discovered:
		return "discovered"
	case Queued:
		return "queued"
	case Visited:
		return "visited"
	default:
		return "unknown"
	}
}

// Node is a single URL's entry in the frontier.
type Node struct {
	URL         string
	State       State
	FriendCount int
}

// Frontier is the crawl's dedup set and pending queue. A URL observed from
// any number of pages gets exactly one node, and a node that has reached
// Queued or Visited is never queued again. Safe for concurrent use.
type Frontier struct {
	mu    sync.Mutex
	nodes map[string]*Node
	queue []string
}

// New returns an empty frontier.
func New() *Frontier {
	return &Frontier{nodes: make(map[string]*Node)}
}

// Observe records a URL sighting without queueing it. The friend count is
// kept from the first sighting that reports one.
func (f *Frontier) Observe(url string, friendCount int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	node, ok := f.nodes[url]
	if !ok {
		f.nodes[url] = &Node{URL: url, State: Discovered, FriendCount: friendCount}
		return
	}
	if node.FriendCount == 0 {
		node.FriendCount = friendCount
	}
}

// Enqueue moves a URL into the pending queue. It reports false when the URL
// was queued or visited before, leaving the frontier unchanged.
func (f *Frontier) Enqueue(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	node, ok := f.nodes[url]
	if ok && node.State != Discovered {
		return false
	}
	if !ok {
		node = &Node{URL: url}
		f.nodes[url] = node
	}
	node.State = Queued
	f.queue = append(f.queue, url)
	return true
}

// Next hands out the oldest pending URL and marks it visited.
func (f *Frontier) Next() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return "", false
	}
	url := f.queue[0]
	f.queue = f.queue[1:]
	f.nodes[url].State = Visited
	return url, true
}

// MarkVisited records a URL as already fetched, so later sightings cannot
// re-queue it. Used to seed the frontier with the crawl's start URLs.
func (f *Frontier) MarkVisited(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	node, ok := f.nodes[url]
	if !ok {
		node = &Node{URL: url}
		f.nodes[url] = node
	}
	node.State = Visited
}

// Lookup returns a copy of the node for a URL, if the frontier has seen it.
func (f *Frontier) Lookup(url string) (Node, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	node, ok := f.nodes[url]
	if !ok {
		return Node{}, false
	}
	return *node, true
}

// Pending reports how many URLs await a fetch.
func (f *Frontier) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Size reports how many distinct URLs the frontier has seen.
func (f *Frontier) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.nodes)
}
