package state

import (
	"bytes"
	"sort"

	"otcswap/storage"
)

// Overlay buffers writes against a base database so a whole invocation can be
// committed or discarded atomically. Discarding is free: the overlay is simply
// dropped. This is what makes a failed operation roll back every state change
// it staged, including the two settlement legs.
type Overlay struct {
	base    storage.Database
	writes  map[string][]byte
	deletes map[string]struct{}
}

// NewOverlay wraps the base database in a fresh write buffer.
func NewOverlay(base storage.Database) *Overlay {
	return &Overlay{
		base:    base,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (o *Overlay) Put(key, value []byte) error {
	k := string(key)
	delete(o.deletes, k)
	o.writes[k] = append([]byte(nil), value...)
	return nil
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	k := string(key)
	if _, gone := o.deletes[k]; gone {
		return nil, nil
	}
	if value, ok := o.writes[k]; ok {
		return append([]byte(nil), value...), nil
	}
	return o.base.Get(key)
}

func (o *Overlay) Delete(key []byte) error {
	k := string(key)
	delete(o.writes, k)
	o.deletes[k] = struct{}{}
	return nil
}

// Iterate merges buffered writes with the base in ascending key order,
// skipping deleted keys and preferring buffered values over base values.
func (o *Overlay) Iterate(prefix, start []byte, fn func(key, value []byte) bool) error {
	staged := make([]string, 0, len(o.writes))
	for k := range o.writes {
		kb := []byte(k)
		if !bytes.HasPrefix(kb, prefix) {
			continue
		}
		if start != nil && bytes.Compare(kb, start) <= 0 {
			continue
		}
		staged = append(staged, k)
	}
	sort.Strings(staged)

	i := 0
	stopped := false
	emit := func(key, value []byte) bool {
		if !fn(key, value) {
			stopped = true
			return false
		}
		return true
	}
	err := o.base.Iterate(prefix, start, func(key, value []byte) bool {
		k := string(key)
		for i < len(staged) && staged[i] < k {
			if !emit([]byte(staged[i]), o.writes[staged[i]]) {
				return false
			}
			i++
		}
		if i < len(staged) && staged[i] == k {
			overridden := o.writes[staged[i]]
			i++
			return emit(key, overridden)
		}
		if _, gone := o.deletes[k]; gone {
			return true
		}
		return emit(key, value)
	})
	if err != nil || stopped {
		return err
	}
	for ; i < len(staged); i++ {
		if !emit([]byte(staged[i]), o.writes[staged[i]]) {
			break
		}
	}
	return nil
}

// Commit flushes the buffered writes and deletions to the base database.
func (o *Overlay) Commit() error {
	for k, v := range o.writes {
		if err := o.base.Put([]byte(k), v); err != nil {
			return err
		}
	}
	for k := range o.deletes {
		if err := o.base.Delete([]byte(k)); err != nil {
			return err
		}
	}
	return nil
}

// Close satisfies storage.Database; the base is owned by the caller.
func (o *Overlay) Close() {}
