package embedding

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	vectorBlobHeaderSize = 4
	vectorValueByteSize  = 4
)

// EncodeVector encodes a vector into a binary blob.
// Format: [4-byte little-endian dimension][N x 4-byte little-endian float32].
// An empty vector encodes to nil.
func EncodeVector(vector Vector) ([]byte, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	blob := make([]byte, vectorBlobHeaderSize+len(vector)*vectorValueByteSize)
	binary.LittleEndian.PutUint32(blob[:vectorBlobHeaderSize], uint32(len(vector)))

	offset := vectorBlobHeaderSize
	for i, value := range vector {
		if math.IsNaN(float64(value)) || math.IsInf(float64(value), 0) {
			return nil, fmt.Errorf("encode vector: invalid value at index %d", i)
		}
		binary.LittleEndian.PutUint32(blob[offset:offset+vectorValueByteSize], math.Float32bits(value))
		offset += vectorValueByteSize
	}
	return blob, nil
}

// DecodeVector decodes a blob created by EncodeVector. A nil or empty blob
// decodes to a nil vector.
func DecodeVector(blob []byte) (Vector, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	if len(blob) < vectorBlobHeaderSize {
		return nil, fmt.Errorf("decode vector: invalid blob length: %d", len(blob))
	}
	dim := int(binary.LittleEndian.Uint32(blob[:vectorBlobHeaderSize]))
	if want := vectorBlobHeaderSize + dim*vectorValueByteSize; dim <= 0 || len(blob) != want {
		return nil, fmt.Errorf("decode vector: dimension mismatch: dim=%d payload=%d", dim, len(blob)-vectorBlobHeaderSize)
	}
	vector := make(Vector, dim)
	offset := vectorBlobHeaderSize
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[offset : offset+vectorValueByteSize]))
		offset += vectorValueByteSize
	}
	return vector, nil
}
