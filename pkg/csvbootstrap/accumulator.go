// Package csvbootstrap is the CSV Bootstrap Pipeline:
// chunked upload reassembly, file persistence, column mapping +
// coercion SQL generation, server-side bulk-load, cleanup.
package csvbootstrap

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// ChunkAccumulator reassembles one chunked CSV upload.
// It is scoped to a single session and destroyed after reassembly
// completes or the session ends.
type ChunkAccumulator struct {
	TenantAppID    string
	TableName      string
	FileName       string
	ExpectedChunks int
	StartedAt      time.Time

	mu             sync.Mutex
	receivedChunks map[int][]byte
	totalBytes     int64
	totalRows      int64
}

// NewChunkAccumulator creates an accumulator for a forthcoming chunked
// upload.
func NewChunkAccumulator(tenantAppID, tableName, fileName string, expectedChunks int, totalRows int64, startedAt time.Time) *ChunkAccumulator {
	return &ChunkAccumulator{
		TenantAppID:    tenantAppID,
		TableName:      tableName,
		FileName:       fileName,
		ExpectedChunks: expectedChunks,
		StartedAt:      startedAt,
		receivedChunks: make(map[int][]byte, expectedChunks),
		totalRows:      totalRows,
	}
}

// Key is the per-session map key: (appId, fileName).
func Key(appID, fileName string) string {
	return appID + "/" + fileName
}

// AddChunk stores one chunk by index. It returns true once every
// expected chunk has arrived. The invariant receivedChunks.size <=
// expectedChunks is enforced by rejecting out-of-range or
// duplicate indices.
func (a *ChunkAccumulator) AddChunk(index int, content []byte) (complete bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if index < 0 || index >= a.ExpectedChunks {
		return false, fmt.Errorf("csvbootstrap: chunk index %d out of range [0,%d)", index, a.ExpectedChunks)
	}
	if _, dup := a.receivedChunks[index]; dup {
		return false, fmt.Errorf("csvbootstrap: chunk index %d already received", index)
	}
	a.receivedChunks[index] = content
	a.totalBytes += int64(len(content))
	return len(a.receivedChunks) == a.ExpectedChunks, nil
}

// Assemble concatenates every received chunk in ascending index order
// into a single byte-exact copy of the source file. It fails if any chunk in [0, ExpectedChunks) is missing.
func (a *ChunkAccumulator) Assemble() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.receivedChunks) != a.ExpectedChunks {
		return nil, fmt.Errorf("csvbootstrap: expected %d chunks, have %d", a.ExpectedChunks, len(a.receivedChunks))
	}
	indices := make([]int, 0, len(a.receivedChunks))
	for idx := range a.receivedChunks {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	out := make([]byte, 0, a.totalBytes)
	for _, idx := range indices {
		out = append(out, a.receivedChunks[idx]...)
	}
	return out, nil
}

// TotalBytes reports the bytes received so far.
func (a *ChunkAccumulator) TotalBytes() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalBytes
}

// ReceivedCount reports how many distinct chunk indices have arrived.
func (a *ChunkAccumulator) ReceivedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.receivedChunks)
}
