package domain

import (
	"errors"
	"fmt"
)

var errNoDataLines = errors.New("no data lines")

// FetchError reports a failed request to an upstream feed. StatusCode is zero
// when the request never produced a response.
type FetchError struct {
	Source     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %s", e.Source, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ShapeError reports a feed line that does not match the measurement layout.
// It always aborts the whole batch.
type ShapeError struct {
	Line   int
	Fields int
	Err    error
}

func (e *ShapeError) Error() string {
	if e.Err != nil {
		if e.Line == 0 {
			return fmt.Sprintf("malformed feed: %v", e.Err)
		}
		return fmt.Sprintf("malformed feed at line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("malformed feed at line %d: expected %d fields, got %d", e.Line, MeasurementFields, e.Fields)
}

func (e *ShapeError) Unwrap() error { return e.Err }

// UploadError reports a failed write to the object store. The run is failed
// from that point on; uploads are never retried.
type UploadError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s/%s: %v", e.Bucket, e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// WarehouseError reports a failed warehouse step. Fatal steps leave nothing
// meaningful downstream; non-fatal steps can be resumed by name.
type WarehouseError struct {
	Step  string
	Fatal bool
	Err   error
}

func (e *WarehouseError) Error() string {
	if e.Fatal {
		return fmt.Sprintf("warehouse step %s (fatal): %v", e.Step, e.Err)
	}
	return fmt.Sprintf("warehouse step %s (resume with --from-step %s): %v", e.Step, e.Step, e.Err)
}

func (e *WarehouseError) Unwrap() error { return e.Err }
