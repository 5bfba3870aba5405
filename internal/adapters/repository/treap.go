package repository

// CalibrationIndex is a treap ordered by (avgScore ASC, userID ASC) that maps
// each calibrated user to its rating. In-order traversal walks users from the
// lowest per-battle score to the highest.
type CalibrationIndex struct {
	root *node
}

type indexKey struct {
	avg    uint32
	userID uint64
}

type node struct {
	key    indexKey
	rating uint32
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if a sorts before b.
func less(a, b indexKey) bool {
	if a.avg != b.avg {
		return a.avg < b.avg
	}
	return a.userID < b.userID
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// keyPriority mixes the key into a heap priority. Keys arrive in nearly
// sorted order on load, so the priority must not follow the key order.
func keyPriority(k indexKey) uint64 {
	z := k.userID ^ (uint64(k.avg) << 32) + 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func insert(n *node, k indexKey, rating uint32) *node {
	if n == nil {
		return &node{key: k, rating: rating, prio: keyPriority(k), size: 1}
	}
	switch {
	case k == n.key:
		n.rating = rating
		return n
	case less(k, n.key):
		n.left = insert(n.left, k, rating)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	default:
		n.right = insert(n.right, k, rating)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, k indexKey) *node {
	if n == nil {
		return nil
	}
	if k == n.key {
		// Rotate the higher-priority child up until the node is a leaf.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, k)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, k)
		}
	} else if less(k, n.key) {
		n.left = deleteNode(n.left, k)
	} else {
		n.right = deleteNode(n.right, k)
	}
	fix(n)
	return n
}

// Insert adds or replaces the entry for (avg, userID).
func (c *CalibrationIndex) Insert(avg uint32, userID uint64, rating uint32) {
	c.root = insert(c.root, indexKey{avg: avg, userID: userID}, rating)
}

// Delete removes the entry for (avg, userID) if present.
func (c *CalibrationIndex) Delete(avg uint32, userID uint64) {
	c.root = deleteNode(c.root, indexKey{avg: avg, userID: userID})
}

// Len returns the number of indexed users.
func (c *CalibrationIndex) Len() int { return nsize(c.root) }

// Ascend calls fn for every entry with from <= avg <= to in key order until
// fn returns false.
func (c *CalibrationIndex) Ascend(from, to uint32, fn func(avg uint32, userID uint64, rating uint32) bool) {
	ascend(c.root, from, to, fn)
}

func ascend(n *node, from, to uint32, fn func(uint32, uint64, uint32) bool) bool {
	if n == nil {
		return true
	}
	if n.key.avg >= from {
		if !ascend(n.left, from, to, fn) {
			return false
		}
	}
	if n.key.avg >= from && n.key.avg <= to {
		if !fn(n.key.avg, n.key.userID, n.rating) {
			return false
		}
	}
	if n.key.avg <= to {
		return ascend(n.right, from, to, fn)
	}
	return true
}
