package reconcile

import "errors"

var (
	// ErrLoginRequired indicates the platform wants credentials before it
	// will serve the URL; the caller should be told to supply cookies.
	ErrLoginRequired = errors.New("login required")
	// ErrFetch indicates the primary stream could not be retrieved.
	ErrFetch = errors.New("stream fetch failed")
	// ErrTranscode indicates a forced format conversion failed and no
	// untranscoded fallback makes sense.
	ErrTranscode = errors.New("transcode failed")
)
