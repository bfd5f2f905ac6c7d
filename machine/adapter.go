package machine

import "io"

// An Adapter represents the minimal CNC machine interface.
type Adapter interface {
	// State receives every status update. Sends are dropped when nobody
	// is listening.
	State() chan State
	CurrentState() State

	// Messages receives lines from the controller that are neither
	// acknowledgements nor status reports, e.g. [MSG:...] or ALARM:n.
	Messages() chan string

	WriteByte(byte) error
	Write([]byte) (int, error)
	ReadFrom(io.Reader) (int64, error)
}
