package datamodel

// The Ledger is the canonical set of live messages.  Every message in the
// ledger is held by at least one agent, and every custody entry points at
// the ledger's own Message value, keyed by (src, dst, seq).  Keeping the
// keyed index here means routing resolves a custody entry in O(1) instead
// of scanning a global list on every encounter.
//
// The order slice preserves insertion order so that live-message queries are
// stable across calls.
type Ledger struct {
	messages map[MessageKey]*Message
	order    []MessageKey
}

// create an empty ledger
func NewLedger() *Ledger {
	return &Ledger{
		messages: make(map[MessageKey]*Message),
	}
}

// number of live messages
func (l *Ledger) Len() int {
	return len(l.messages)
}

// is the message with this key live?
func (l *Ledger) Has(k MessageKey) bool {
	_, ok := l.messages[k]
	return ok
}

// fetch the live message with this key, or nil
func (l *Ledger) Get(k MessageKey) *Message {
	return l.messages[k]
}

// add a message to the ledger.  Adding a key that is already present is a
// no-op and returns false; message identity is the (src, dst, seq) triple.
func (l *Ledger) Add(m *Message) bool {
	k := m.Key()
	if _, ok := l.messages[k]; ok {
		return false
	}
	l.messages[k] = m
	l.order = append(l.order, k)
	return true
}

// remove a message from the ledger.  Returns false if the key was not live.
func (l *Ledger) Remove(k MessageKey) bool {
	if _, ok := l.messages[k]; !ok {
		return false
	}
	delete(l.messages, k)
	for i, key := range l.order {
		if key == k {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return true
}

// snapshot of all live messages, in insertion order.  The returned slice
// holds copies; callers cannot mutate ledger state through it.
func (l *Ledger) Snapshot() []Message {
	out := make([]Message, 0, len(l.order))
	for _, k := range l.order {
		if m, ok := l.messages[k]; ok {
			out = append(out, *m)
		}
	}
	return out
}

// visit every live message in insertion order.  The visitor must not add or
// remove ledger entries.
func (l *Ledger) Range(f func(m *Message) bool) {
	for _, k := range l.order {
		m, ok := l.messages[k]
		if !ok {
			continue
		}
		if !f(m) {
			return
		}
	}
}

// drop everything
func (l *Ledger) Clear() {
	l.messages = make(map[MessageKey]*Message)
	l.order = nil
}
