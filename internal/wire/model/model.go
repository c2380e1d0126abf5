// Package model holds the types shared across the wire codec, type
// descriptor, reference table, and session layers: wire constants, the
// id types, and the error-kind taxonomy from the wire format.
package model

import (
	"fmt"
	"time"
)

// ObjectID identifies a reference-typed value within one session. Id 0
// is reserved for the root.
type ObjectID uint64

const RootID ObjectID = 0

// TypeID identifies a distinct runtime type within one session. Id 0
// denotes a null reference in a type-stamped slot.
type TypeID uint32

const NullTypeID TypeID = 0

// Stream header, fixed 6 bytes.
const (
	Magic0         byte = 0x32
	Magic1         byte = 0x66
	Magic2         byte = 0x34
	CurrentVersion byte = 9
	HeaderSize          = 6
)

// Header is the fixed leading block of every stream.
type Header struct {
	Version             byte
	ReferencesPreserved bool
	TypeStampingEnabled bool
}

// MaxMetadataLen is the largest opaque metadata payload a writer may emit.
const MaxMetadataLen = 255

// ReferencePreservation controls whether the session tracks object
// identity at all.
type ReferencePreservation byte

const (
	DoNotPreserve ReferencePreservation = iota
	Preserve
	UseWeakReference
)

// SerializationMethod names a write/read strategy. No reader or writer
// Config in this module takes one: every session reads and writes
// through the reflection-based path.
type SerializationMethod byte

const (
	Reflection SerializationMethod = iota
	Generated
)

// VersionTolerance is a bitset of the reconciliation behaviours a reader
// session permits when a stamp's structural fingerprint doesn't match the
// local type.
type VersionTolerance uint8

const (
	AllowFieldAddition VersionTolerance = 1 << iota
	AllowFieldRemoval
	AllowFieldMove
	AllowAssemblyVersionChange
	AllowGuidChange
	AllowTypeNameChange
)

func (t VersionTolerance) Has(flag VersionTolerance) bool { return t&flag != 0 }

// ErrorKind is a discriminated classification of everything that can go
// wrong reading or writing a stream; see spec §7.
type ErrorKind int

const (
	Ok ErrorKind = iota
	WrongMagic
	WrongVersion
	WrongStreamConfiguration
	MetadataCorrupted
	StreamTruncated
	StreamCorrupted
	TypeStructureChanged
	InvalidOperation
	ArgumentOutOfRange
)

func (k ErrorKind) String() string {
	switch k {
	case Ok:
		return "Ok"
	case WrongMagic:
		return "WrongMagic"
	case WrongVersion:
		return "WrongVersion"
	case WrongStreamConfiguration:
		return "WrongStreamConfiguration"
	case MetadataCorrupted:
		return "MetadataCorrupted"
	case StreamTruncated:
		return "StreamTruncated"
	case StreamCorrupted:
		return "StreamCorrupted"
	case TypeStructureChanged:
		return "TypeStructureChanged"
	case InvalidOperation:
		return "InvalidOperation"
	case ArgumentOutOfRange:
		return "ArgumentOutOfRange"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error wraps a classified ErrorKind with the underlying cause, if any.
// The session façade (§4.G) surfaces these directly from the one-shot
// API and stores the last one reached for the open-stream API.
type Error struct {
	Kind  ErrorKind
	Msg   string
	Cause error
}

func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func WrapError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Decimal is the 128-bit layout §4.A calls for: a sign+scale flag word
// plus a 96-bit unsigned integer mantissa split across three 32-bit
// limbs, mirroring the CLR decimal's defining bit layout.
type Decimal struct {
	Flags uint32 // bits 16-23: scale (0-28); bit 31: sign
	Hi    uint32
	Lo    uint32
	Mid   uint32
}

func (d Decimal) Scale() byte { return byte(d.Flags >> 16) }
func (d Decimal) Negative() bool { return d.Flags&0x80000000 != 0 }

// DateTimeKind tags how a serialised time.Time's wall-clock should be
// interpreted on read, independent of the tick value itself.
type DateTimeKind byte

const (
	Unspecified DateTimeKind = iota
	UTC
	Local
)

// ticksEpoch is 0001-01-01T00:00:00Z, matching the "64-bit tick count"
// the spec describes without pinning an epoch.
var ticksEpoch = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)

const ticksPerSecond = 10_000_000 // 100ns units

// ToTicks converts t to a 64-bit tick count since the stream epoch.
func ToTicks(t time.Time) int64 {
	secs := t.Unix() - ticksEpoch.Unix()
	return secs*ticksPerSecond + int64(t.Nanosecond())/100
}

// FromTicks reconstructs a UTC time.Time from a tick count.
func FromTicks(ticks int64) time.Time {
	secs, rem := ticks/ticksPerSecond, ticks%ticksPerSecond
	return time.Unix(ticksEpoch.Unix()+secs, rem*100).UTC()
}

func KindOf(t time.Time) DateTimeKind {
	if t.Location() == time.UTC {
		return UTC
	}
	if t.Location() == time.Local {
		return Local
	}
	return Unspecified
}
