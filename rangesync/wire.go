package rangesync

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/multiformats/go-varint"
)

// EntryCodec serializes and deserializes the opaque Entry/Ordered types a
// Store is built over, so wire.go can ship them without the reconciliation
// core needing to know anything about key or entry representation (spec
// §4.2, "Application-level entry semantics"). Implementations should be
// exact inverses of each other.
type EntryCodec interface {
	EncodeKey(k Ordered) ([]byte, error)
	DecodeKey(b []byte) (Ordered, error)
	EncodeEntry(e Entry) ([]byte, error)
	DecodeEntry(b []byte) (Entry, error)
}

// wire layout, mirroring the varint length-prefixed framing p2p/server
// uses for request/response bodies:
//
//	message      := varint(partCount) part*
//	part         := partType(1) range fingerprintPart | itemPart
//	range        := isAll(1) [ key key ]                 -- keys omitted when isAll
//	fingerprintPart := fingerprint(32)
//	itemPart     := haveLocal(1) varint(valueCount) value*
//	value        := field field                          -- key bytes, entry bytes
//	field        := varint(len) bytes
//	keys are themselves `field`s; the fingerprint is 32 raw bytes with no
//	length prefix.

// EncodeMessage writes msg to w using codec to serialize keys and entries.
func EncodeMessage(w io.Writer, msg *Message, codec EntryCodec) error {
	bw := bufio.NewWriter(w)
	if err := writeUvarint(bw, uint64(len(msg.Parts))); err != nil {
		return err
	}
	for i, part := range msg.Parts {
		if err := encodePart(bw, part, codec); err != nil {
			return fmt.Errorf("encode part %d: %w", i, err)
		}
	}
	return bw.Flush()
}

func encodePart(w *bufio.Writer, part MessagePart, codec EntryCodec) error {
	if err := w.WriteByte(byte(part.Type)); err != nil {
		return err
	}
	if err := encodeRange(w, part.Range, codec); err != nil {
		return err
	}
	switch part.Type {
	case PartRangeFingerprint:
		_, err := w.Write(part.Fingerprint[:])
		return err
	case PartRangeItem:
		haveLocal := byte(0)
		if part.HaveLocal {
			haveLocal = 1
		}
		if err := w.WriteByte(haveLocal); err != nil {
			return err
		}
		if err := writeUvarint(w, uint64(len(part.Values))); err != nil {
			return err
		}
		for _, e := range part.Values {
			if err := encodeEntry(w, e, codec); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("rangesync: cannot encode unknown part type %v", part.Type)
	}
}

func encodeRange(w *bufio.Writer, r Range, codec EntryCodec) error {
	if r.IsAll() {
		return w.WriteByte(1)
	}
	if err := w.WriteByte(0); err != nil {
		return err
	}
	if err := encodeKeyField(w, r.X, codec); err != nil {
		return fmt.Errorf("encode range.X: %w", err)
	}
	if err := encodeKeyField(w, r.Y, codec); err != nil {
		return fmt.Errorf("encode range.Y: %w", err)
	}
	return nil
}

func encodeKeyField(w *bufio.Writer, k Ordered, codec EntryCodec) error {
	b, err := codec.EncodeKey(k)
	if err != nil {
		return err
	}
	return writeField(w, b)
}

func encodeEntry(w *bufio.Writer, e Entry, codec EntryCodec) error {
	kb, err := codec.EncodeKey(e.Key())
	if err != nil {
		return err
	}
	eb, err := codec.EncodeEntry(e)
	if err != nil {
		return err
	}
	if err := writeField(w, kb); err != nil {
		return err
	}
	return writeField(w, eb)
}

func writeField(w *bufio.Writer, b []byte) error {
	if err := writeUvarint(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func writeUvarint(w *bufio.Writer, v uint64) error {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	_, err := w.Write(buf[:n])
	return err
}

// DecodeMessage reads a Message previously written by EncodeMessage.
func DecodeMessage(r io.Reader, codec EntryCodec) (*Message, error) {
	br := bufio.NewReader(r)
	count, err := varint.ReadUvarint(br)
	if err != nil {
		return nil, fmt.Errorf("read part count: %w", err)
	}
	msg := &Message{Parts: make([]MessagePart, 0, count)}
	for i := uint64(0); i < count; i++ {
		part, err := decodePart(br, codec)
		if err != nil {
			return nil, fmt.Errorf("decode part %d: %w", i, err)
		}
		msg.Parts = append(msg.Parts, part)
	}
	return msg, nil
}

func decodePart(r *bufio.Reader, codec EntryCodec) (MessagePart, error) {
	typByte, err := r.ReadByte()
	if err != nil {
		return MessagePart{}, err
	}
	typ := PartType(typByte)
	rng, err := decodeRange(r, codec)
	if err != nil {
		return MessagePart{}, err
	}
	switch typ {
	case PartRangeFingerprint:
		var fp Fingerprint
		if _, err := io.ReadFull(r, fp[:]); err != nil {
			return MessagePart{}, err
		}
		return RangeFingerprintPart(rng, fp), nil
	case PartRangeItem:
		haveLocalByte, err := r.ReadByte()
		if err != nil {
			return MessagePart{}, err
		}
		n, err := varint.ReadUvarint(r)
		if err != nil {
			return MessagePart{}, err
		}
		values := make([]Entry, 0, n)
		for i := uint64(0); i < n; i++ {
			e, err := decodeEntry(r, codec)
			if err != nil {
				return MessagePart{}, fmt.Errorf("value %d: %w", i, err)
			}
			values = append(values, e)
		}
		return RangeItemPart(rng, values, haveLocalByte != 0), nil
	default:
		return MessagePart{}, fmt.Errorf("rangesync: unknown wire part type %02x", typByte)
	}
}

func decodeRange(r *bufio.Reader, codec EntryCodec) (Range, error) {
	isAll, err := r.ReadByte()
	if err != nil {
		return Range{}, err
	}
	if isAll != 0 {
		return Range{}, nil
	}
	x, err := decodeKeyField(r, codec)
	if err != nil {
		return Range{}, fmt.Errorf("range.X: %w", err)
	}
	y, err := decodeKeyField(r, codec)
	if err != nil {
		return Range{}, fmt.Errorf("range.Y: %w", err)
	}
	return NewRange(x, y), nil
}

func decodeKeyField(r *bufio.Reader, codec EntryCodec) (Ordered, error) {
	b, err := readField(r)
	if err != nil {
		return nil, err
	}
	return codec.DecodeKey(b)
}

func decodeEntry(r *bufio.Reader, codec EntryCodec) (Entry, error) {
	kb, err := readField(r)
	if err != nil {
		return nil, fmt.Errorf("key: %w", err)
	}
	eb, err := readField(r)
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	k, err := codec.DecodeKey(kb)
	if err != nil {
		return nil, err
	}
	e, err := codec.DecodeEntry(eb)
	if err != nil {
		return nil, err
	}
	if e.Key().Compare(k) != 0 {
		return nil, fmt.Errorf("rangesync: entry key mismatch between key and entry fields")
	}
	return e, nil
}

func readField(r *bufio.Reader) ([]byte, error) {
	n, err := varint.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
