package models

// Document is the persisted ledger aggregate.
type Document struct {
	Slots []Slot `json:"slots"`
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{Slots: []Slot{}}
}

// Find returns a pointer into the document for the slot with id, or nil.
func (d *Document) Find(id string) *Slot {
	for i := range d.Slots {
		if d.Slots[i].ID == id {
			return &d.Slots[i]
		}
	}
	return nil
}

// Clone returns a deep copy so callers can't alias stored state.
func (d *Document) Clone() *Document {
	out := &Document{Slots: make([]Slot, len(d.Slots))}
	copy(out.Slots, d.Slots)
	for i := range out.Slots {
		if at := out.Slots[i].BookedAt; at != nil {
			t := *at
			out.Slots[i].BookedAt = &t
		}
	}
	return out
}
