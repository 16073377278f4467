// Package hashing - Per-block content digests and the ordered HashSet of an image.
package hashing

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/fnv"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/Niederb/hash-art/blocks"
	"github.com/Niederb/hash-art/errs"
	"github.com/Niederb/hash-art/images"
)

// Algorithm selects the digest used for every block.
type Algorithm uint8

// Supported algorithms. The zero value is invalid.
const (
	SHA512 Algorithm = iota + 1
	SHA256
	SHA1
	MD5
	FNV64a
	BLAKE2b256
	SHA3256
)

// DefaultAlgorithm is SHA-512.
const DefaultAlgorithm = SHA512

var algorithmNames = map[Algorithm]string{
	SHA512:     "sha512",
	SHA256:     "sha256",
	SHA1:       "sha1",
	MD5:        "md5",
	FNV64a:     "fnv64a",
	BLAKE2b256: "blake2b-256",
	SHA3256:    "sha3-256",
}

// Algorithms lists the names accepted by ParseAlgorithm.
func Algorithms() []string {
	out := make([]string, 0, len(algorithmNames))
	for a := SHA512; a <= SHA3256; a++ {
		out = append(out, algorithmNames[a])
	}
	return out
}

// String returns the algorithm name.
func (a Algorithm) String() string {
	if name, ok := algorithmNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Algorithm(%d)", uint8(a))
}

// ParseAlgorithm maps a name to an Algorithm. The empty string selects DefaultAlgorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultAlgorithm, nil
	}
	for a, name := range algorithmNames {
		if name == s {
			return a, nil
		}
	}
	return 0, errs.Setupf("hashing.ParseAlgorithm", errs.ErrInvalidConfig,
		"unknown hash %q (want one of %s)", s, strings.Join(Algorithms(), ", "))
}

// New returns a fresh hash.Hash for the algorithm.
func (a Algorithm) New() (hash.Hash, error) {
	switch a {
	case SHA512:
		return sha512.New(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA1:
		return sha1.New(), nil
	case MD5:
		return md5.New(), nil
	case FNV64a:
		return fnv.New64a(), nil
	case BLAKE2b256:
		return blake2b.New256(nil)
	case SHA3256:
		return sha3.New256(), nil
	default:
		return nil, errs.Setupf("hashing.New", errs.ErrInvalidConfig, "unsupported algorithm %s", a)
	}
}

// BlockHash is the digest of one block. It is comparable with ==; digests of
// different algorithms never compare equal.
type BlockHash struct {
	alg Algorithm
	n   uint8
	sum [sha512.Size]byte
}

// Algorithm returns the algorithm that produced the digest.
func (h BlockHash) Algorithm() Algorithm { return h.alg }

// Bytes returns a copy of the digest.
func (h BlockHash) Bytes() []byte {
	out := make([]byte, h.n)
	copy(out, h.sum[:h.n])
	return out
}

// String returns the digest in hex.
func (h BlockHash) String() string {
	return hex.EncodeToString(h.sum[:h.n])
}

// HashSet holds one BlockHash per block, indexed like the grid.
type HashSet []BlockHash

// Clone returns an independent copy.
func (s HashSet) Clone() HashSet {
	out := make(HashSet, len(s))
	copy(out, s)
	return out
}

// Equal reports element-wise equality.
func (s HashSet) Equal(o HashSet) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Hasher computes block digests with a reusable hash state and scratch buffer.
// A Hasher is not safe for concurrent use; Clone one per goroutine.
type Hasher struct {
	alg Algorithm
	h   hash.Hash
	buf []byte
}

// NewHasher creates a Hasher for alg.
func NewHasher(alg Algorithm) (*Hasher, error) {
	h, err := alg.New()
	if err != nil {
		return nil, err
	}
	return &Hasher{alg: alg, h: h}, nil
}

// Algorithm returns the algorithm in use.
func (hs *Hasher) Algorithm() Algorithm { return hs.alg }

// Clone returns an independent Hasher with the same algorithm.
func (hs *Hasher) Clone() *Hasher {
	// alg was validated by NewHasher.
	h, _ := hs.alg.New()
	return &Hasher{alg: hs.alg, h: h}
}

// Sum digests data. Identical bytes always produce identical digests.
func (hs *Hasher) Sum(data []byte) BlockHash {
	hs.h.Reset()
	hs.h.Write(data)

	out := BlockHash{alg: hs.alg, n: uint8(hs.h.Size())}
	hs.h.Sum(out.sum[:0])
	return out
}

// HashBlock digests the canonical serialization of block i of img.
func (hs *Hasher) HashBlock(img *images.Image, g blocks.Grid, i int) BlockHash {
	hs.buf = g.Bytes(img, i, hs.buf)
	return hs.Sum(hs.buf)
}

// HashSet computes the digests of every block of img.
//
// Arguments:
//   - img: The image, shaped like the grid.
//   - g: The block grid.
//
// Returns:
//   - HashSet: One digest per block in grid order.
//   - error: A setup error wrapping errs.ErrBlockGridMismatch if img does not fit g.
func (hs *Hasher) HashSet(img *images.Image, g blocks.Grid) (HashSet, error) {
	if err := g.Check(img); err != nil {
		return nil, err
	}
	set := make(HashSet, g.Len())
	for i := range set {
		set[i] = hs.HashBlock(img, g, i)
	}
	return set, nil
}

// Rehash recomputes only the listed blocks of set in place. The result equals a
// full HashSet computation whenever indices covers every block that changed.
func (hs *Hasher) Rehash(set HashSet, img *images.Image, g blocks.Grid, indices []int) error {
	if len(set) != g.Len() {
		return errs.Iterationf("hashing.Rehash", errs.ErrBlockGridMismatch, "set has %d blocks, grid %d", len(set), g.Len())
	}
	for _, i := range indices {
		if i < 0 || i >= len(set) {
			return errs.Iterationf("hashing.Rehash", errs.ErrOutOfBounds, "block %d of %d", i, len(set))
		}
	}
	for _, i := range indices {
		set[i] = hs.HashBlock(img, g, i)
	}
	return nil
}
