package dataitem

import (
	"crypto/sha512"
	"strconv"
)

// chunk is one node of a deep-hash input: either a blob or a list of chunks.
type chunk struct {
	blob []byte
	list []chunk
	leaf bool
}

func blob(b []byte) chunk       { return chunk{blob: b, leaf: true} }
func list(items ...chunk) chunk { return chunk{list: items} }

// deepHash is the SHA-384 structural hash used to build signature input.
func deepHash(c chunk) [48]byte {
	if c.leaf {
		tag := sha512.Sum384([]byte("blob" + strconv.Itoa(len(c.blob))))
		data := sha512.Sum384(c.blob)
		return sha512.Sum384(append(tag[:], data[:]...))
	}

	acc := sha512.Sum384([]byte("list" + strconv.Itoa(len(c.list))))
	for _, item := range c.list {
		h := deepHash(item)
		acc = sha512.Sum384(append(acc[:], h[:]...))
	}
	return acc
}
