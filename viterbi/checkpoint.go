package viterbi

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// computeIdempotencyKey derives a stable identifier for a (runID, step)
// checkpoint from the committed message, so a Store implementation can
// detect and discard a duplicate write of the same already-committed step
// (for instance after a caller retries a checkpoint save following a
// transient I/O error).
func computeIdempotencyKey[S State[S]](runID string, step int, message map[S]float64) string {
	h := sha256.New()
	h.Write([]byte(runID))

	stepBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(stepBytes, uint64(step))
	h.Write(stepBytes)

	type entry struct {
		State string  `json:"state"`
		Prob  float64 `json:"prob"`
	}
	entries := make([]entry, 0, len(message))
	for s, p := range message {
		sj, err := json.Marshal(s)
		if err != nil {
			continue
		}
		entries = append(entries, entry{State: string(sj), Prob: p})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].State < entries[j].State })
	if data, err := json.Marshal(entries); err == nil {
		h.Write(data)
	}

	return "sha256:" + hex.EncodeToString(h.Sum(nil))
}
