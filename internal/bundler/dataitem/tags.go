package dataitem

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/helix/internal/models"
)

const (
	maxTags        = 128
	maxTagNameLen  = 1024
	maxTagValueLen = 3072
)

var errTagDecode = errors.New("malformed tag block")

// encodeTags writes tags as an Avro array of {name: bytes, value: bytes}
// records. No tags encode to an empty slice.
func encodeTags(tags []models.Tag) ([]byte, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	if len(tags) > maxTags {
		return nil, fmt.Errorf("too many tags: %d", len(tags))
	}

	var buf bytes.Buffer
	writeLong(&buf, int64(len(tags)))
	for _, t := range tags {
		if t.Name == "" {
			return nil, errors.New("tag name is empty")
		}
		if len(t.Name) > maxTagNameLen || len(t.Value) > maxTagValueLen {
			return nil, fmt.Errorf("tag %q too long", t.Name)
		}
		writeLong(&buf, int64(len(t.Name)))
		buf.WriteString(t.Name)
		writeLong(&buf, int64(len(t.Value)))
		buf.WriteString(t.Value)
	}
	writeLong(&buf, 0)
	return buf.Bytes(), nil
}

func decodeTags(b []byte) ([]models.Tag, error) {
	if len(b) == 0 {
		return nil, nil
	}

	r := bytes.NewReader(b)
	var tags []models.Tag
	for {
		n, err := binary.ReadVarint(r)
		if err != nil {
			return nil, errTagDecode
		}
		if n == 0 {
			break
		}
		if n < 0 {
			// negative count is followed by the block size in bytes
			if _, err := binary.ReadVarint(r); err != nil {
				return nil, errTagDecode
			}
			n = -n
		}
		for i := int64(0); i < n; i++ {
			name, err := readBytes(r)
			if err != nil {
				return nil, err
			}
			value, err := readBytes(r)
			if err != nil {
				return nil, err
			}
			tags = append(tags, models.Tag{Name: string(name), Value: string(value)})
		}
	}
	if r.Len() != 0 {
		return nil, errTagDecode
	}
	return tags, nil
}

// writeLong writes an Avro long: zigzag varint.
func writeLong(buf *bytes.Buffer, v int64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutVarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := binary.ReadVarint(r)
	if err != nil || n < 0 || n > int64(r.Len()) {
		return nil, errTagDecode
	}
	out := make([]byte, n)
	if _, err := r.Read(out); err != nil && n > 0 {
		return nil, errTagDecode
	}
	return out, nil
}
