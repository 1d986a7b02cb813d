package provider

// lruList orders the resolved entries of a shard, most recently placed
// first. It is guarded by the shard lock.
type lruList struct {
	head *entry
	tail *entry
	len  int
}

func (l *lruList) pushFront(e *entry) {
	e.listed = true
	e.prev = nil
	e.next = l.head
	if l.head != nil {
		l.head.prev = e
	} else {
		l.tail = e
	}
	l.head = e
	l.len++
}

func (l *lruList) remove(e *entry) {
	if !e.listed {
		return
	}
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		l.tail = e.prev
	}
	e.prev, e.next, e.listed = nil, nil, false
	l.len--
}

// oldest returns the least recently used entry of the list. Hits only bump
// the access tick under a read lock, so entries touched since they were
// placed are moved to the front first.
func (l *lruList) oldest() *entry {
	for e := l.tail; e != nil; e = l.tail {
		access := e.access.Load()
		if access == e.placed {
			return e
		}
		l.remove(e)
		e.placed = access
		l.pushFront(e)
	}
	return nil
}
