package correlator

import (
	"container/list"
	"time"
)

type dedupEntry struct {
	idKey  string
	key    string
	seenAt time.Time
}

// dedup remembers delivered replies by id and content, bounded by capacity and optionally by age.
type dedup struct {
	capacity int
	window   time.Duration
	entries  *list.List
	index    map[string]*list.Element
	byID     map[string][]*list.Element
}

func (d *dedup) seen(idKey, fingerprint string, now time.Time) bool {
	element, ok := d.index[idKey+"#"+fingerprint]
	if !ok {
		return false
	}
	if entry := element.Value.(*dedupEntry); d.window > 0 && now.Sub(entry.seenAt) > d.window {
		d.remove(element)
		return false
	}
	return true
}

func (d *dedup) add(idKey, fingerprint string, now time.Time) {
	key := idKey + "#" + fingerprint
	if element, ok := d.index[key]; ok {
		element.Value.(*dedupEntry).seenAt = now
		d.entries.MoveToBack(element)
		return
	}
	element := d.entries.PushBack(&dedupEntry{idKey: idKey, key: key, seenAt: now})
	d.index[key] = element
	d.byID[idKey] = append(d.byID[idKey], element)
	for d.entries.Len() > d.capacity {
		d.remove(d.entries.Front())
	}
}

// forget drops every entry recorded for idKey
func (d *dedup) forget(idKey string) {
	elements := d.byID[idKey]
	delete(d.byID, idKey)
	for _, element := range elements {
		d.entries.Remove(element)
		delete(d.index, element.Value.(*dedupEntry).key)
	}
}

func (d *dedup) remove(element *list.Element) {
	entry := element.Value.(*dedupEntry)
	d.entries.Remove(element)
	delete(d.index, entry.key)
	elements := d.byID[entry.idKey]
	for i, candidate := range elements {
		if candidate == element {
			elements = append(elements[:i], elements[i+1:]...)
			break
		}
	}
	if len(elements) == 0 {
		delete(d.byID, entry.idKey)
	} else {
		d.byID[entry.idKey] = elements
	}
}

func (d *dedup) len() int {
	return d.entries.Len()
}

func newDedup(capacity int, window time.Duration) *dedup {
	if capacity < 1 {
		capacity = 1
	}
	return &dedup{
		capacity: capacity,
		window:   window,
		entries:  list.New(),
		index:    map[string]*list.Element{},
		byID:     map[string][]*list.Element{},
	}
}
