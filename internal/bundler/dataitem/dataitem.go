// Package dataitem builds and parses signed data items, the envelope the
// bundling network accepts for permanent storage.
//
// Only the ed25519 (Solana) owner type is supported:
//
//	sigType u16le | signature[64] | owner[32] | target flag | anchor flag |
//	tagCount u64le | tagBytesLen u64le | tags | data
//
// The signature covers a SHA-384 deep hash of the item fields, and the item
// identifier is base64url(sha256(signature)). ed25519 signatures are
// deterministic, so the same owner, tags and data always produce the same
// identifier.
package dataitem

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/helix/internal/models"
)

const (
	// SignatureTypeSolana is the envelope signature type for ed25519 owners.
	SignatureTypeSolana uint16 = 4

	SignatureLength = 64
	OwnerLength     = 32

	headerLength = 2 + SignatureLength + OwnerLength
)

var (
	ErrMalformed        = errors.New("malformed data item")
	ErrUnsupportedType  = errors.New("unsupported signature type")
	ErrInvalidSignature = errors.New("invalid data item signature")
)

// MessageSigner produces a raw ed25519 signature over msg.
type MessageSigner interface {
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)
}

// Item is an unsigned or signed data item.
type Item struct {
	Owner     []byte
	Tags      []models.Tag
	Data      []byte
	Signature []byte

	rawTags []byte
}

// New prepares an unsigned item.
func New(owner []byte, tags []models.Tag, data []byte) (*Item, error) {
	if len(owner) != OwnerLength {
		return nil, fmt.Errorf("%w: owner must be %d bytes", ErrMalformed, OwnerLength)
	}
	raw, err := encodeTags(tags)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return &Item{Owner: owner, Tags: tags, Data: data, rawTags: raw}, nil
}

// SignatureData is the message the owner signs.
func (it *Item) SignatureData() []byte {
	h := deepHash(list(
		blob([]byte("dataitem")),
		blob([]byte("1")),
		blob([]byte(strconv.Itoa(int(SignatureTypeSolana)))),
		blob(it.Owner),
		blob(nil),
		blob(nil),
		blob(it.rawTags),
		blob(it.Data),
	))
	return h[:]
}

// Sign asks signer to sign the item. Errors from the signer are returned
// unwrapped so callers can tell a declined request from a failure.
func (it *Item) Sign(ctx context.Context, signer MessageSigner) error {
	sig, err := signer.SignMessage(ctx, it.SignatureData())
	if err != nil {
		return err
	}
	if len(sig) != SignatureLength {
		return fmt.Errorf("%w: signer returned %d bytes", ErrInvalidSignature, len(sig))
	}
	it.Signature = sig
	return nil
}

// ID is the content-derived identifier of a signed item.
func (it *Item) ID() (string, error) {
	if len(it.Signature) != SignatureLength {
		return "", fmt.Errorf("%w: item is not signed", ErrMalformed)
	}
	sum := sha256.Sum256(it.Signature)
	return base64.RawURLEncoding.EncodeToString(sum[:]), nil
}

// Verify checks the signature against the owner key.
func (it *Item) Verify() error {
	if len(it.Signature) != SignatureLength || len(it.Owner) != OwnerLength {
		return ErrMalformed
	}
	if !ed25519.Verify(ed25519.PublicKey(it.Owner), it.SignatureData(), it.Signature) {
		return ErrInvalidSignature
	}
	return nil
}

// Bytes serializes a signed item.
func (it *Item) Bytes() ([]byte, error) {
	if len(it.Signature) != SignatureLength {
		return nil, fmt.Errorf("%w: item is not signed", ErrMalformed)
	}

	out := make([]byte, 0, headerLength+2+16+len(it.rawTags)+len(it.Data))
	out = binary.LittleEndian.AppendUint16(out, SignatureTypeSolana)
	out = append(out, it.Signature...)
	out = append(out, it.Owner...)
	out = append(out, 0, 0) // no target, no anchor
	out = binary.LittleEndian.AppendUint64(out, uint64(len(it.Tags)))
	out = binary.LittleEndian.AppendUint64(out, uint64(len(it.rawTags)))
	out = append(out, it.rawTags...)
	out = append(out, it.Data...)
	return out, nil
}

// Parse decodes a serialized item. The signature is not checked; call Verify.
func Parse(b []byte) (*Item, error) {
	if len(b) < headerLength+2+16 {
		return nil, ErrMalformed
	}
	if t := binary.LittleEndian.Uint16(b); t != SignatureTypeSolana {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedType, t)
	}

	it := &Item{
		Signature: append([]byte(nil), b[2:2+SignatureLength]...),
		Owner:     append([]byte(nil), b[2+SignatureLength:headerLength]...),
	}

	pos := headerLength
	// target and anchor are optional 32-byte fields behind a presence flag
	for range 2 {
		if pos >= len(b) {
			return nil, ErrMalformed
		}
		switch b[pos] {
		case 0:
			pos++
		case 1:
			return nil, fmt.Errorf("%w: target and anchor are not supported", ErrMalformed)
		default:
			return nil, ErrMalformed
		}
	}

	if len(b) < pos+16 {
		return nil, ErrMalformed
	}
	count := binary.LittleEndian.Uint64(b[pos:])
	size := binary.LittleEndian.Uint64(b[pos+8:])
	pos += 16
	if size > uint64(len(b)-pos) {
		return nil, ErrMalformed
	}

	it.rawTags = append([]byte(nil), b[pos:pos+int(size)]...)
	tags, err := decodeTags(it.rawTags)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if uint64(len(tags)) != count {
		return nil, fmt.Errorf("%w: tag count mismatch", ErrMalformed)
	}
	it.Tags = tags
	it.Data = append([]byte(nil), b[pos+int(size):]...)

	return it, nil
}
