package memstore

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/orbitsync/rangesync/rangesync"
)

// StringCodec implements rangesync.EntryCodec for StringEntry/StringKey,
// encoding the key followed by a NUL-separated value.
type StringCodec struct{}

var _ rangesync.EntryCodec = StringCodec{}

func (StringCodec) EncodeKey(k rangesync.Ordered) ([]byte, error) {
	sk, ok := k.(StringKey)
	if !ok {
		return nil, fmt.Errorf("memstore: StringCodec cannot encode key of type %T", k)
	}
	return []byte(sk), nil
}

func (StringCodec) DecodeKey(b []byte) (rangesync.Ordered, error) {
	return StringKey(b), nil
}

// entrySep separates key from value in a StringEntry's wire form. Keys
// in tests and the demo never contain a NUL byte.
const entrySep = 0

func (StringCodec) EncodeEntry(e rangesync.Entry) ([]byte, error) {
	se, ok := e.(StringEntry)
	if !ok {
		return nil, fmt.Errorf("memstore: StringCodec cannot encode entry of type %T", e)
	}
	buf := make([]byte, 0, len(se.K)+len(se.V)+1)
	buf = append(buf, se.K...)
	buf = append(buf, entrySep)
	buf = append(buf, se.V...)
	return buf, nil
}

func (StringCodec) DecodeEntry(b []byte) (rangesync.Entry, error) {
	idx := bytes.IndexByte(b, entrySep)
	if idx < 0 {
		return nil, fmt.Errorf("memstore: malformed StringEntry wire value %q", b)
	}
	return StringEntry{K: string(b[:idx]), V: string(b[idx+1:])}, nil
}

// MultiKeyCodec implements rangesync.EntryCodec for MultiKey/MultiKeyEntry.
// The value is a fixed-width big-endian int64.
type MultiKeyCodec struct{}

var _ rangesync.EntryCodec = MultiKeyCodec{}

func (MultiKeyCodec) EncodeKey(k rangesync.Ordered) ([]byte, error) {
	mk, ok := k.(MultiKey)
	if !ok {
		return nil, fmt.Errorf("memstore: MultiKeyCodec cannot encode key of type %T", k)
	}
	var buf bytes.Buffer
	buf.Write(mk.Author[:])
	buf.Write(mk.Key)
	return buf.Bytes(), nil
}

func (MultiKeyCodec) DecodeKey(b []byte) (rangesync.Ordered, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("memstore: multikey field too short: %d bytes", len(b))
	}
	var mk MultiKey
	copy(mk.Author[:], b[:4])
	mk.Key = append([]byte(nil), b[4:]...)
	return mk, nil
}

func (MultiKeyCodec) EncodeEntry(e rangesync.Entry) ([]byte, error) {
	me, ok := e.(MultiKeyEntry)
	if !ok {
		return nil, fmt.Errorf("memstore: MultiKeyCodec cannot encode entry of type %T", e)
	}
	kb, err := MultiKeyCodec{}.EncodeKey(me.MK)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.Write(kb)
	if err := binary.Write(&buf, binary.BigEndian, me.Value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (MultiKeyCodec) DecodeEntry(b []byte) (rangesync.Entry, error) {
	if len(b) < 12 {
		return nil, fmt.Errorf("memstore: multikey entry field too short: %d bytes", len(b))
	}
	valueOff := len(b) - 8
	k, err := MultiKeyCodec{}.DecodeKey(b[:valueOff])
	if err != nil {
		return nil, err
	}
	mk := k.(MultiKey)
	value := int64(binary.BigEndian.Uint64(b[valueOff:]))
	return MultiKeyEntry{MK: mk, Value: value}, nil
}
