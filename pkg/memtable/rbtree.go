package memtable

import "github.com/dd0wney/cluso-kv/pkg/kv"

type color bool

const (
	red   color = true
	black color = false
)

type node struct {
	key    uint64
	value  uint64
	color  color
	left   *node
	right  *node
	parent *node
}

// rbTree is a red-black tree keyed by u64 with last-write-wins inserts.
// It backs the memtable; all operations are in-memory and cannot fail.
type rbTree struct {
	root *node
	size int
}

func newRBTree() *rbTree {
	return &rbTree{}
}

// Insert adds key with value, overwriting the value if the key exists.
func (t *rbTree) Insert(key, value uint64) {
	var parent *node
	cur := t.root
	for cur != nil {
		parent = cur
		switch {
		case key < cur.key:
			cur = cur.left
		case key > cur.key:
			cur = cur.right
		default:
			cur.value = value
			return
		}
	}

	n := &node{key: key, value: value, color: red, parent: parent}
	switch {
	case parent == nil:
		t.root = n
	case key < parent.key:
		parent.left = n
	default:
		parent.right = n
	}
	t.size++
	t.fixInsert(n)
}

// Search returns the value stored under key, or kv.Invalid.
func (t *rbTree) Search(key uint64) uint64 {
	cur := t.root
	for cur != nil {
		switch {
		case key < cur.key:
			cur = cur.left
		case key > cur.key:
			cur = cur.right
		default:
			return cur.value
		}
	}
	return kv.Invalid
}

// Range appends every entry with key1 <= key <= key2 to out, in ascending
// key order, and returns the extended slice.
func (t *rbTree) Range(key1, key2 uint64, out []kv.Entry) []kv.Entry {
	return rangeWalk(t.root, key1, key2, out)
}

func rangeWalk(n *node, key1, key2 uint64, out []kv.Entry) []kv.Entry {
	if n == nil {
		return out
	}
	if n.key > key1 {
		out = rangeWalk(n.left, key1, key2, out)
	}
	if n.key >= key1 && n.key <= key2 {
		out = append(out, kv.Entry{Key: n.key, Value: n.value})
	}
	if n.key < key2 {
		out = rangeWalk(n.right, key1, key2, out)
	}
	return out
}

// MinKey returns the smallest key in the tree. Valid only when Size() > 0.
func (t *rbTree) MinKey() uint64 {
	if t.root == nil {
		return kv.Invalid
	}
	cur := t.root
	for cur.left != nil {
		cur = cur.left
	}
	return cur.key
}

// MaxKey returns the largest key in the tree. Valid only when Size() > 0.
func (t *rbTree) MaxKey() uint64 {
	if t.root == nil {
		return kv.Invalid
	}
	cur := t.root
	for cur.right != nil {
		cur = cur.right
	}
	return cur.key
}

func (t *rbTree) Size() int { return t.size }

func (t *rbTree) Clear() {
	t.root = nil
	t.size = 0
}

func (t *rbTree) rotateLeft(x *node) {
	y := x.right
	x.right = y.left
	if y.left != nil {
		y.left.parent = x
	}
	y.parent = x.parent
	switch {
	case x.parent == nil:
		t.root = y
	case x == x.parent.left:
		x.parent.left = y
	default:
		x.parent.right = y
	}
	y.left = x
	x.parent = y
}

func (t *rbTree) rotateRight(x *node) {
	y := x.left
	x.left = y.right
	if y.right != nil {
		y.right.parent = x
	}
	y.parent = x.parent
	switch {
	case x.parent == nil:
		t.root = y
	case x == x.parent.right:
		x.parent.right = y
	default:
		x.parent.left = y
	}
	y.right = x
	x.parent = y
}

func (t *rbTree) fixInsert(n *node) {
	for n.parent != nil && n.parent.color == red {
		grand := n.parent.parent
		if n.parent == grand.left {
			uncle := grand.right
			if uncle != nil && uncle.color == red {
				n.parent.color = black
				uncle.color = black
				grand.color = red
				n = grand
				continue
			}
			if n == n.parent.right {
				n = n.parent
				t.rotateLeft(n)
			}
			n.parent.color = black
			grand.color = red
			t.rotateRight(grand)
		} else {
			uncle := grand.left
			if uncle != nil && uncle.color == red {
				n.parent.color = black
				uncle.color = black
				grand.color = red
				n = grand
				continue
			}
			if n == n.parent.left {
				n = n.parent
				t.rotateRight(n)
			}
			n.parent.color = black
			grand.color = red
			t.rotateLeft(grand)
		}
	}
	t.root.color = black
}
