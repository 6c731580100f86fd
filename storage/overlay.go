package storage

import (
	"bytes"
	"errors"
	"sort"
)

// Overlay buffers writes on top of a Database until Commit flushes them as a
// single batch. Reads observe the buffered writes first. An Overlay is not safe
// for concurrent use.
type Overlay struct {
	base Database
	// nil value marks a pending delete.
	writes map[string][]byte
	done   bool
}

// NewOverlay starts a unit of work on top of base.
func NewOverlay(base Database) *Overlay {
	return &Overlay{base: base, writes: make(map[string][]byte)}
}

var errOverlayClosed = errors.New("storage: overlay already committed or discarded")

func (o *Overlay) Put(key []byte, value []byte) error {
	if o.done {
		return errOverlayClosed
	}
	if value == nil {
		value = []byte{}
	}
	o.writes[string(key)] = append([]byte{}, value...)
	return nil
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	if o.done {
		return nil, errOverlayClosed
	}
	if value, ok := o.writes[string(key)]; ok {
		if value == nil {
			return nil, ErrNotFound
		}
		return append([]byte{}, value...), nil
	}
	return o.base.Get(key)
}

func (o *Overlay) Has(key []byte) (bool, error) {
	if o.done {
		return false, errOverlayClosed
	}
	if value, ok := o.writes[string(key)]; ok {
		return value != nil, nil
	}
	return o.base.Has(key)
}

func (o *Overlay) Delete(key []byte) error {
	if o.done {
		return errOverlayClosed
	}
	o.writes[string(key)] = nil
	return nil
}

// Iterate merges buffered writes with the committed entries of base.
func (o *Overlay) Iterate(prefix []byte, fn func(key, value []byte) error) error {
	if o.done {
		return errOverlayClosed
	}
	merged := make(map[string][]byte)
	err := o.base.Iterate(prefix, func(key, value []byte) error {
		merged[string(key)] = append([]byte{}, value...)
		return nil
	})
	if err != nil {
		return err
	}
	for k, v := range o.writes {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn([]byte(k), merged[k]); err != nil {
			return err
		}
	}
	return nil
}

// Pending reports the number of buffered mutations.
func (o *Overlay) Pending() int { return len(o.writes) }

// Commit writes all buffered mutations atomically and closes the overlay.
func (o *Overlay) Commit() error {
	if o.done {
		return errOverlayClosed
	}
	batch := o.base.NewBatch()
	keys := make([]string, 0, len(o.writes))
	for k := range o.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v := o.writes[k]; v == nil {
			batch.Delete([]byte(k))
		} else {
			batch.Put([]byte(k), v)
		}
	}
	if err := batch.Write(); err != nil {
		return err
	}
	o.done = true
	o.writes = nil
	return nil
}

// Discard drops all buffered mutations. Calling Discard after Commit is a no-op.
func (o *Overlay) Discard() {
	o.done = true
	o.writes = nil
}
