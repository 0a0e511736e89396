// Package ingest adapts crawler output into documents for the pipeline.
package ingest

import (
	"context"

	"github.com/decimal-labs/leakwatch/internal/model"
)

// Source produces documents. Stream sends every document to out and returns
// when the input is exhausted or ctx is done. It does not close out.
type Source interface {
	Stream(ctx context.Context, out chan<- model.Document) error
}

// Feed runs src in a goroutine and returns the document channel together with
// a wait function that reports the source's error once the channel is closed.
func Feed(ctx context.Context, src Source, buffer int) (<-chan model.Document, func() error) {
	ch := make(chan model.Document, buffer)
	errc := make(chan error, 1)
	go func() {
		defer close(ch)
		errc <- src.Stream(ctx, ch)
	}()
	return ch, func() error { return <-errc }
}

// send delivers doc unless ctx ends first.
func send(ctx context.Context, out chan<- model.Document, doc model.Document) error {
	select {
	case out <- doc:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
