package session

import (
	"fmt"

	"github.com/mabhi256/objwire/internal/wire/codec"
	"github.com/mabhi256/objwire/internal/wire/model"
)

func xorChecksum(data []byte) byte {
	var c byte
	for _, b := range data {
		c ^= b
	}
	return c
}

// writeMetadata emits the stream's optional opaque metadata block: a
// length prefix (zero means absent), the bytes themselves, and an XOR
// checksum byte.
func writeMetadata(cw *codec.Writer, data []byte) error {
	if len(data) > model.MaxMetadataLen {
		return model.NewError(model.ArgumentOutOfRange, fmt.Sprintf("metadata length %d exceeds the %d-byte limit", len(data), model.MaxMetadataLen))
	}
	if err := cw.WriteUvarint(uint64(len(data))); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := cw.WriteBytes(data); err != nil {
		return err
	}
	return cw.WriteByte(xorChecksum(data))
}

// readMetadata reads the optional metadata block, if present, and
// verifies its checksum. A checksum mismatch is reported directly as
// MetadataCorrupted: the block is self-describing (length-prefixed),
// so there is nothing to gain by rewinding and reinterpreting the same
// bytes as something else, and rewinding a buffered, possibly
// non-seekable stream reliably isn't possible in general anyway.
func readMetadata(cr *codec.Reader) ([]byte, error) {
	n, err := cr.ReadUvarint()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	if n > model.MaxMetadataLen {
		return nil, model.NewError(model.MetadataCorrupted, fmt.Sprintf("metadata length %d exceeds the %d-byte limit", n, model.MaxMetadataLen))
	}
	data, err := cr.ReadBytes(int(n))
	if err != nil {
		return nil, err
	}
	checksum, err := cr.ReadByte()
	if err != nil {
		return nil, err
	}
	if checksum != xorChecksum(data) {
		return nil, model.NewError(model.MetadataCorrupted, "metadata checksum mismatch")
	}
	return data, nil
}
