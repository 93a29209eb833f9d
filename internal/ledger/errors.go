package ledger

import "errors"

var (
	ErrSlotNotFound  = errors.New("slot not found")
	ErrAlreadyBooked = errors.New("slot already booked")
)
