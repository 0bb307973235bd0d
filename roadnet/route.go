package roadnet

import "container/heap"

// SearchTree holds a bounded one-to-many shortest path search from a single node
type SearchTree struct {
	Source NodeID
	Cutoff float64
	dist   map[NodeID]float64
	via    map[NodeID]*Edge
}

type queueItem struct {
	node NodeID
	dist float64
}

type nodeQueue []queueItem

func (q nodeQueue) Len() int { return len(q) }
func (q nodeQueue) Less(i, j int) bool {
	if q[i].dist != q[j].dist {
		return q[i].dist < q[j].dist
	}
	return q[i].node < q[j].node
}
func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x any)   { *q = append(*q, x.(queueItem)) }
func (q *nodeQueue) Pop() any {
	old := *q
	item := old[len(old)-1]
	*q = old[:len(old)-1]
	return item
}

// ShortestPaths runs Dijkstra from source, settling only nodes within cutoff meters
func (n *Network) ShortestPaths(source NodeID, cutoff float64) *SearchTree {
	t := &SearchTree{
		Source: source,
		Cutoff: cutoff,
		dist:   map[NodeID]float64{source: 0},
		via:    make(map[NodeID]*Edge),
	}
	if _, ok := n.nodes[source]; !ok || cutoff < 0 {
		return t
	}

	settled := make(map[NodeID]bool)
	q := &nodeQueue{{node: source}}
	for q.Len() > 0 {
		cur := heap.Pop(q).(queueItem)
		if settled[cur.node] {
			continue
		}
		settled[cur.node] = true

		for _, e := range n.out[cur.node] {
			next := cur.dist + e.Length
			if next > cutoff {
				continue
			}
			if d, ok := t.dist[e.ID.To]; ok && d <= next {
				continue
			}
			t.dist[e.ID.To] = next
			t.via[e.ID.To] = e
			heap.Push(q, queueItem{node: e.ID.To, dist: next})
		}
	}
	return t
}

// Distance returns the shortest distance to target, if it was reached within the cutoff
func (t *SearchTree) Distance(target NodeID) (float64, bool) {
	d, ok := t.dist[target]
	return d, ok
}

// Path returns the edges from the source to target in travel order
func (t *SearchTree) Path(target NodeID) ([]*Edge, bool) {
	if _, ok := t.dist[target]; !ok {
		return nil, false
	}
	var rev []*Edge
	for cur := target; cur != t.Source; {
		e := t.via[cur]
		rev = append(rev, e)
		cur = e.ID.From
	}
	path := make([]*Edge, len(rev))
	for i, e := range rev {
		path[len(rev)-1-i] = e
	}
	return path, true
}

// ShortestPath is a convenience wrapper for a single source/target pair
func (n *Network) ShortestPath(from, to NodeID, cutoff float64) (float64, []*Edge, bool) {
	t := n.ShortestPaths(from, cutoff)
	d, ok := t.Distance(to)
	if !ok {
		return 0, nil, false
	}
	path, _ := t.Path(to)
	return d, path, true
}
