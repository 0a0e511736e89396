package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNewInterruptHandler_DefaultsToStderr(t *testing.T) {
	h := NewInterruptHandler(nil)
	require.NotNil(t, h.writer)
	assert.False(t, h.WasInterrupted())
}

func TestInterruptHandler(t *testing.T) {
	tests := []struct {
		name       string
		hint       string
		interrupts int
		cancelBase bool
		wantNotice int
		wantHint   bool
	}{
		{name: "single interrupt with hint", hint: "Re-run with the same input to resume.", interrupts: 1, wantNotice: 1, wantHint: true},
		{name: "repeated interrupts print once", interrupts: 3, wantNotice: 1},
		{name: "parent cancellation is silent", cancelBase: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &lockedBuffer{}
			h := NewInterruptHandler(out)

			base, cancel := context.WithCancel(context.Background())
			defer cancel()
			ctx := h.HandleInterrupts(base, tt.hint)

			select {
			case <-ctx.Done():
				t.Fatal("context canceled before any interrupt")
			default:
			}

			for range tt.interrupts {
				h.interrupt()
			}
			if tt.cancelBase {
				cancel()
			}
			<-ctx.Done()

			assert.Equal(t, tt.interrupts > 0, h.WasInterrupted())
			assert.Equal(t, tt.wantNotice, strings.Count(out.String(), "Ingestion interrupted!"))
			if tt.wantHint {
				assert.Contains(t, out.String(), tt.hint)
			} else {
				assert.NotContains(t, out.String(), InfoIcon)
			}
		})
	}
}
