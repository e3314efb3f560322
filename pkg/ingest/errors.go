package ingest

import "errors"

// ErrSourceNotFound is returned when sending to a source that is not connected.
var ErrSourceNotFound = errors.New("ingest: source not connected")
