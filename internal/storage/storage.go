// Package storage provides the archival sink for accepted image bytes.
// The catalog record in the store is authoritative; the sink holds the
// heavyweight bytes and is addressed by an opaque ref.
package storage

import "context"

// Sink stores image bytes under a folder/name pair and returns an opaque
// ref for the catalog record. Store must be idempotent: re-storing an
// existing name returns the existing ref without uploading again.
type Sink interface {
	Store(ctx context.Context, folder, name string, data []byte) (ref string, err error)
	Exists(ctx context.Context, folder, name string) (bool, error)
}

// NoopSink discards everything. Used when a run is configured without an
// archive, and in tests.
type NoopSink struct{}

// Store implements Sink without persisting anything.
func (NoopSink) Store(_ context.Context, _, _ string, _ []byte) (string, error) {
	return "", nil
}

// Exists implements Sink; nothing ever exists.
func (NoopSink) Exists(_ context.Context, _, _ string) (bool, error) {
	return false, nil
}
