package sqlite

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// Embeddings are stored as little-endian float32 blobs. The dimension is
// implied by the blob length, which keeps the schema independent of the
// configured embedding model.

func float32ArrayToBlob(floats []float32) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, floats); err != nil {
		return nil, errors.Wrap(err, "failed to encode embedding blob")
	}
	return buf.Bytes(), nil
}

func blobToFloat32Array(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, errors.Errorf("invalid embedding blob length %d", len(blob))
	}
	floats := make([]float32, len(blob)/4)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, &floats); err != nil {
		return nil, errors.Wrap(err, "failed to decode embedding blob")
	}
	return floats, nil
}

// cosineSimilarity returns the cosine of the angle between a and b,
// or 0 when either vector has zero magnitude or lengths differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// candidateCap bounds how many stored embeddings are pulled into Go for
// ranking. SQLite has no vector index, so search is a scored scan over a
// bounded candidate set.
func candidateCap(limit, maxCandidates int) int {
	if maxCandidates > 0 {
		return maxCandidates
	}
	n := limit * 5
	if n > 500 {
		n = 500
	}
	return n
}
