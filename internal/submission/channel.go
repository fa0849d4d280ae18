// Package submission files ready reports on the external complaint form and
// runs the batch that drives it.
package submission

import "context"

// Opener acquires the external form channel. Only one session is held per run.
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

// Session is one held connection to the external complaint form.
// Field names are the form's input names.
type Session interface {
	// Reset brings the form back to a blank state before an attempt.
	Reset(ctx context.Context) error
	Fill(ctx context.Context, field, value string) error
	// Select picks the option whose visible text equals option.
	Select(ctx context.Context, field, option string) error
	// AttachFile hands a local file path to an upload control.
	AttachFile(ctx context.Context, field, path string) error
	Submit(ctx context.Context) error
	Close() error
	// Method names the automation backend, stored as submission provenance.
	Method() string
}
