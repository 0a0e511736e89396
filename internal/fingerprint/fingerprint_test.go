package fingerprint

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/decimal-labs/leakwatch/internal/model"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"collapses whitespace", "  Contact:\t a@b.com,\n\n Aadhaar  234123412346 ", "contact: a@b.com, aadhaar 234123412346"},
		{"case folds", "PASSWORD Straße", "password strasse"},
		{"compatibility forms", "ＡＢＣ１２３", "abc123"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestComputeIgnoresTrivialReformatting(t *testing.T) {
	a := Compute("Contact: a@b.com, Aadhaar 234123412346")
	b := Compute("contact:   A@B.COM,\nAadhaar 234123412346\n")
	c := Compute("Contact: a@b.com, Aadhaar 234123412347")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, Valid(a))
	assert.Len(t, string(a), 64)
}

func TestValid(t *testing.T) {
	assert.False(t, Valid("abc"))
	assert.False(t, Valid(model.Fingerprint(string(make([]byte, 64)))))
}

func TestLockerSerialisesSameKey(t *testing.T) {
	l := NewLocker(8)
	fp := Compute("same content")

	var (
		wg      sync.WaitGroup
		active  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock(fp)
			defer unlock()

			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}
