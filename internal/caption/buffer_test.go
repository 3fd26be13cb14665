package caption

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func chunkN(i int) Chunk {
	return Chunk{ID: fmt.Sprintf("c-%d", i), Seq: int64(i), Text: "t"}
}

func TestBufferKeepsMostRecentInArrivalOrder(t *testing.T) {
	for _, tc := range []struct{ max, n int }{{1, 5}, {3, 3}, {3, 10}, {200, 1000}, {5, 2}} {
		b := NewBuffer(tc.max)
		evictions := 0
		for i := range tc.n {
			if b.Append(chunkN(i)) {
				evictions++
			}
		}

		got := b.Snapshot()
		wantLen := min(tc.n, tc.max)
		assert.Len(t, got, wantLen)
		assert.Equal(t, wantLen, b.Len())
		assert.Equal(t, max(0, tc.n-tc.max), evictions)
		for i, c := range got {
			assert.Equal(t, int64(tc.n-wantLen+i), c.Seq)
		}
	}
}

func TestBufferOrderIgnoresSeq(t *testing.T) {
	b := NewBuffer(2)
	b.Append(Chunk{ID: "late", Seq: 9})
	b.Append(Chunk{ID: "early", Seq: 1})
	b.Append(Chunk{ID: "dup", Seq: 1})

	got := b.Snapshot()
	assert.Equal(t, "early", got[0].ID)
	assert.Equal(t, "dup", got[1].ID)
}

func TestBufferDefaultsAndReset(t *testing.T) {
	b := NewBuffer(0)
	assert.Equal(t, DefaultMaxItems, b.Cap())

	b.Append(chunkN(1))
	b.Reset()
	assert.Zero(t, b.Len())
	assert.Empty(t, b.Snapshot())

	b.Append(chunkN(2))
	assert.Equal(t, "c-2", b.Snapshot()[0].ID)
}
