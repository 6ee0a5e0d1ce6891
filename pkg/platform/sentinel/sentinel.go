package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Clients and stores return these
// (optionally wrapped) so the pipeline can classify outcomes with errors.Is
// instead of matching strings.
//
// - ErrNotFound: the resource does not exist at the remote authority
// - ErrUnavailable: transient infrastructure condition; retrying may succeed
var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("unavailable")
)
