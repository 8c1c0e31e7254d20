package orders

import "errors"

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
)

var ErrInvalidTransition = errors.New("invalid status transition")

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true},
	StatusConfirmed: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}
