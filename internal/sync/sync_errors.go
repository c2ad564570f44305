package sync

import "fmt"

// Op identifies one kind of tree mutation performed by the executor.
type Op string

const (
	OpPurge  Op = "purge"
	OpMkdir  Op = "mkdir"
	OpCopy   Op = "copy"
	OpHash   Op = "hash"
	OpDelete Op = "delete"
	OpRmdir  Op = "rmdir"
)

// EndpointError is fatal: one of the two roots cannot be resolved or created.
// It aborts the run before any scanning or diffing happens.
type EndpointError struct {
	Label string // "path" or "destination"
	Root  string
	Err   error
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("%s endpoint %s: %v", e.Label, e.Root, e.Err)
}

func (e *EndpointError) Unwrap() error {
	return e.Err
}

// ItemError records a failed operation on a single file or directory. Item
// errors never abort the run; they accumulate in SyncResult.Errors in the
// order they occurred.
type ItemError struct {
	Item string // relative path of the affected item
	Op   Op
	Err  error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Item, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}
