package chat

import "github.com/omochice/threadchat/pkg/protocol"

// Entry is one rendered message.
type Entry struct {
	Message protocol.Message
	Node    Node
}

// List is the ordered set of rendered messages, in acceptance order and keyed
// by message ID. An ID is present at most once.
type List struct {
	entries []*Entry
	index   map[int64]*Entry
}

// NewList creates an empty List.
func NewList() *List {
	return &List{index: make(map[int64]*Entry)}
}

// Append adds e to the end of the list. It returns false, leaving the list
// unchanged, when an entry with the same ID is already present.
func (l *List) Append(e Entry) bool {
	if _, ok := l.index[e.Message.ID]; ok {
		return false
	}
	entry := &e
	l.entries = append(l.entries, entry)
	l.index[e.Message.ID] = entry
	return true
}

// Seed places entries ahead of everything already in the list, in the given
// order. An entry whose ID is already present is not added again; the present
// entry moves to the seeded position and keeps its state.
func (l *List) Seed(entries []Entry) {
	seeded := make([]*Entry, 0, len(entries)+len(l.entries))
	placed := make(map[int64]bool, len(entries))
	for _, e := range entries {
		id := e.Message.ID
		if placed[id] {
			continue
		}
		placed[id] = true
		entry, ok := l.index[id]
		if !ok {
			entry = &Entry{Message: e.Message, Node: e.Node}
			l.index[id] = entry
		}
		seeded = append(seeded, entry)
	}
	for _, e := range l.entries {
		if !placed[e.Message.ID] {
			seeded = append(seeded, e)
		}
	}
	l.entries = seeded
}

// Get returns the entry with the given message ID.
func (l *List) Get(id int64) (*Entry, bool) {
	e, ok := l.index[id]
	return e, ok
}

// Len returns the number of entries.
func (l *List) Len() int {
	return len(l.entries)
}

// Nodes returns a copy of the display nodes in order.
func (l *List) Nodes() []Node {
	nodes := make([]Node, len(l.entries))
	for i, e := range l.entries {
		nodes[i] = e.Node
	}
	return nodes
}
