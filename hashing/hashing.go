package hashing

import (
	"crypto/sha256"
	"fmt"
	"hash"

	"github.com/PlakarLabs/tilediff/objects"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
)

func DefaultAlgorithm() string {
	return "blake3"
}

func Algorithms() []string {
	return []string{"blake2b", "blake3", "sha256"}
}

func GetHasher(name string) hash.Hash {
	switch name {
	case "blake3":
		return blake3.New()
	case "sha256":
		return sha256.New()
	case "blake2b":
		h, err := blake2b.New256(nil)
		if err != nil {
			return nil
		}
		return h
	default:
		return nil
	}
}

// Fingerprinter computes the content fingerprint of chunk payloads with
// a fixed algorithm. All supported algorithms produce 32 byte digests.
type Fingerprinter struct {
	algorithm string
}

func NewFingerprinter(algorithm string) (*Fingerprinter, error) {
	if algorithm == "" {
		algorithm = DefaultAlgorithm()
	}
	if GetHasher(algorithm) == nil {
		return nil, fmt.Errorf("unsupported hashing algorithm %q", algorithm)
	}
	return &Fingerprinter{algorithm: algorithm}, nil
}

func (f *Fingerprinter) Algorithm() string {
	return f.algorithm
}

func (f *Fingerprinter) Sum(data []byte) objects.Checksum {
	if f.algorithm == "blake3" {
		return blake3.Sum256(data)
	}
	h := GetHasher(f.algorithm)
	h.Write(data)
	var sum objects.Checksum
	copy(sum[:], h.Sum(nil))
	return sum
}

// Checksum is the digest recorded in diff files. It is always BLAKE3
// so that files stay readable whatever fingerprint the index uses.
func Checksum(data []byte) objects.Checksum {
	return blake3.Sum256(data)
}
