package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/iancoleman/orderedmap"
)

// MutationRecord is a named, reversible set of field changes recorded
// against an entity. Original holds the pre-mutation values for exactly
// the keys Updates touches, read from live state at apply time; a nil
// original value marks a key that did not exist before the mutation and
// is deleted again on revert.
type MutationRecord struct {
	Name      string        `json:"name"`
	Original  UpdateRequest `json:"original"`
	Updates   UpdateRequest `json:"updates"`
	CreatedAt time.Time     `json:"createdAt"`
}

// MutationStack is the set of active mutations on one entity, ordered
// by insertion. The JSON form preserves that order so revert-all can
// process records oldest-first across restarts.
type MutationStack struct {
	order   []string
	records map[string]MutationRecord
}

// NewMutationStack returns an empty stack.
func NewMutationStack() *MutationStack {
	return &MutationStack{records: map[string]MutationRecord{}}
}

// Get returns the named record, if present.
func (s *MutationStack) Get(name string) (MutationRecord, bool) {
	record, ok := s.records[name]
	return record, ok
}

// Set inserts or replaces a record. A new name is appended to the
// insertion order; replacing keeps the original position.
func (s *MutationStack) Set(record MutationRecord) {
	if _, exists := s.records[record.Name]; !exists {
		s.order = append(s.order, record.Name)
	}
	s.records[record.Name] = record
}

// Delete removes the named record, reporting whether it was present.
func (s *MutationStack) Delete(name string) bool {
	if _, ok := s.records[name]; !ok {
		return false
	}
	delete(s.records, name)
	for i, existing := range s.order {
		if existing == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Names returns the record names in insertion order.
func (s *MutationStack) Names() []string {
	return append([]string(nil), s.order...)
}

// Len returns the number of active records.
func (s *MutationStack) Len() int {
	return len(s.records)
}

// Records returns a name-keyed copy of the stored records.
func (s *MutationStack) Records() map[string]MutationRecord {
	out := make(map[string]MutationRecord, len(s.records))
	for name, record := range s.records {
		out[name] = record
	}
	return out
}

// MarshalJSON encodes the stack as a JSON object whose key order is
// the insertion order.
func (s *MutationStack) MarshalJSON() ([]byte, error) {
	om := orderedmap.New()
	for _, name := range s.order {
		om.Set(name, s.records[name])
	}
	return json.Marshal(om)
}

// UnmarshalJSON decodes a JSON object into the stack, recovering the
// insertion order from the document's key order.
func (s *MutationStack) UnmarshalJSON(data []byte) error {
	om := orderedmap.New()
	if err := json.Unmarshal(data, om); err != nil {
		return fmt.Errorf("decode mutation stack order: %w", err)
	}
	var records map[string]MutationRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("decode mutation stack records: %w", err)
	}

	s.order = s.order[:0]
	s.records = make(map[string]MutationRecord, len(records))
	for _, name := range om.Keys() {
		record, ok := records[name]
		if !ok {
			continue
		}
		s.order = append(s.order, name)
		s.records[name] = record
	}
	return nil
}
