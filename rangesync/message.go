package rangesync

import (
	"fmt"
	"strings"
)

// PartType identifies which of the two message part shapes a MessagePart
// carries.
type PartType byte

const (
	PartRangeFingerprint PartType = iota
	PartRangeItem
)

var partTypes = []string{"rangeFingerprint", "rangeItem"}

func (t PartType) String() string {
	if int(t) < len(partTypes) {
		return partTypes[t]
	}
	return fmt.Sprintf("<unknown part type %02x>", byte(t))
}

// MessagePart is either:
//
//   - a RangeFingerprint: "over Range my fingerprint is Fingerprint", or
//   - a RangeItem: "here are entries I hold in Range; if !HaveLocal,
//     please send back anything in Range you hold that isn't among
//     Values; if HaveLocal, no reply for this range is needed."
//
// Exactly one of the two shapes applies depending on Type; Fingerprint is
// meaningful only for PartRangeFingerprint, Values/HaveLocal only for
// PartRangeItem.
type MessagePart struct {
	Type        PartType
	Range       Range
	Fingerprint Fingerprint
	Values      []Entry
	HaveLocal   bool
}

// RangeFingerprintPart builds a PartRangeFingerprint part.
func RangeFingerprintPart(r Range, fp Fingerprint) MessagePart {
	return MessagePart{Type: PartRangeFingerprint, Range: r, Fingerprint: fp}
}

// RangeItemPart builds a PartRangeItem part.
func RangeItemPart(r Range, values []Entry, haveLocal bool) MessagePart {
	return MessagePart{Type: PartRangeItem, Range: r, Values: values, HaveLocal: haveLocal}
}

// Message is an ordered sequence of parts exchanged between peers. Part
// order carries no semantic weight, but implementations preserve
// insertion order for reproducible tests.
type Message struct {
	Parts []MessagePart
}

// IsEmpty reports whether the message carries no parts, the termination
// signal of a reconciliation session.
func (m *Message) IsEmpty() bool {
	return m == nil || len(m.Parts) == 0
}

// String renders the message for logging/debugging.
func (m *Message) String() string {
	if m == nil {
		return "<nil>"
	}
	var sb strings.Builder
	sb.WriteString("<message")
	for _, p := range m.Parts {
		fmt.Fprintf(&sb, " %s", partString(p))
	}
	sb.WriteString(">")
	return sb.String()
}

func partString(p MessagePart) string {
	switch p.Type {
	case PartRangeFingerprint:
		return fmt.Sprintf("rf(%s fp=%s)", p.Range, p.Fingerprint)
	case PartRangeItem:
		return fmt.Sprintf("ri(%s local=%v n=%d)", p.Range, p.HaveLocal, len(p.Values))
	default:
		return fmt.Sprintf("<bad part %s>", p.Type)
	}
}
