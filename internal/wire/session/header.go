package session

import (
	"fmt"

	"github.com/mabhi256/objwire/internal/wire/codec"
	"github.com/mabhi256/objwire/internal/wire/model"
)

func writeHeader(cw *codec.Writer, h model.Header) error {
	for _, b := range [3]byte{model.Magic0, model.Magic1, model.Magic2} {
		if err := cw.WriteByte(b); err != nil {
			return err
		}
	}
	if err := cw.WriteByte(h.Version); err != nil {
		return err
	}
	var flags byte
	if h.ReferencesPreserved {
		flags |= 1
	}
	if h.TypeStampingEnabled {
		flags |= 2
	}
	if err := cw.WriteByte(flags); err != nil {
		return err
	}
	return cw.WriteByte(0) // reserved, always zero in the current version
}

func readHeader(cr *codec.Reader) (model.Header, error) {
	for _, want := range [3]byte{model.Magic0, model.Magic1, model.Magic2} {
		got, err := cr.ReadByte()
		if err != nil {
			return model.Header{}, err
		}
		if got != want {
			return model.Header{}, model.NewError(model.WrongMagic, fmt.Sprintf("expected magic byte 0x%02x, got 0x%02x", want, got))
		}
	}
	version, err := cr.ReadByte()
	if err != nil {
		return model.Header{}, err
	}
	if version != model.CurrentVersion {
		return model.Header{}, model.NewError(model.WrongVersion, fmt.Sprintf("stream version %d, this build supports %d", version, model.CurrentVersion))
	}
	flags, err := cr.ReadByte()
	if err != nil {
		return model.Header{}, err
	}
	if _, err := cr.ReadByte(); err != nil { // reserved
		return model.Header{}, err
	}
	return model.Header{
		Version:             version,
		ReferencesPreserved: flags&1 != 0,
		TypeStampingEnabled: flags&2 != 0,
	}, nil
}
