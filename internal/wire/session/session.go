// Package session implements the façade from spec §4.G: the 6-byte
// header and optional metadata block framing a stream, an open-stream
// handle for writing or reading many objects over one connection, and
// a one-shot Serialize/Deserialize pair for the common single-object
// case.
package session

import (
	"bytes"
	"fmt"
	"io"

	"github.com/mabhi256/objwire/internal/wire/codec"
	"github.com/mabhi256/objwire/internal/wire/model"
	"github.com/mabhi256/objwire/internal/wire/reader"
	"github.com/mabhi256/objwire/internal/wire/surrogate"
	"github.com/mabhi256/objwire/internal/wire/writer"
)

// Options configures both ends of a stream. A reader's Options must
// agree with whatever Options the stream was written with (barring
// VersionTolerance, which only the reader consults). The header records
// only whether references are preserved and whether type stamping is
// enabled; a reader that disagrees on either is rejected with
// WrongStreamConfiguration. A disagreement on TreatCollectionAsUserObject
// is not detected.
type Options struct {
	ReferencePreservation       model.ReferencePreservation
	DisableTypeStamping         bool
	TreatCollectionAsUserObject bool
	VersionTolerance            model.VersionTolerance
	Metadata                    []byte

	WriteSurrogates *surrogate.Registry[surrogate.WriteFunc]
	ReadSurrogates  *surrogate.Registry[surrogate.ReadFunc]
}

func (o Options) header() model.Header {
	return model.Header{
		Version:             model.CurrentVersion,
		ReferencesPreserved: o.ReferencePreservation != model.DoNotPreserve,
		TypeStampingEnabled: !o.DisableTypeStamping,
	}
}

func (o Options) writerOpts() []writer.Option {
	opts := []writer.Option{writer.WithReferencePreservation(o.ReferencePreservation)}
	if o.DisableTypeStamping {
		opts = append(opts, writer.WithTypeStampingDisabled())
	}
	if o.TreatCollectionAsUserObject {
		opts = append(opts, writer.WithCollectionsAsUserObjects())
	}
	return opts
}

func (o Options) readerOpts() []reader.Option {
	opts := []reader.Option{
		reader.WithReferencePreservation(o.ReferencePreservation),
		reader.WithVersionTolerance(o.VersionTolerance),
	}
	if o.TreatCollectionAsUserObject {
		opts = append(opts, reader.WithCollectionsAsUserObjects())
	}
	return opts
}

// WriteSession is an open stream a caller writes one or more object
// graphs to with WriteObject, flushing and closing out with Close.
type WriteSession struct {
	ow      *writer.ObjectWriter
	lastErr error
}

// OpenWriter writes the stream header and optional metadata block, then
// returns a handle ready for WriteObject calls.
func OpenWriter(w io.Writer, opts Options) (*WriteSession, error) {
	cw := codec.NewWriter(w)
	if err := writeHeader(cw, opts.header()); err != nil {
		return nil, err
	}
	if err := writeMetadata(cw, opts.Metadata); err != nil {
		return nil, err
	}
	ow := writer.NewObjectWriterFromCodec(cw, opts.WriteSurrogates, opts.writerOpts()...)
	return &WriteSession{ow: ow}, nil
}

func (s *WriteSession) WriteObject(root any) error {
	if err := s.ow.WriteObject(root); err != nil {
		s.lastErr = err
		return err
	}
	return nil
}

// Close flushes any buffered output. It does not close the underlying
// io.Writer, which the caller owns.
func (s *WriteSession) Close() error { return s.ow.Flush() }

// LastError returns the last error WriteObject returned, for callers
// that want to inspect the failure after the fact rather than at the
// call site (spec §4.G's lastException).
func (s *WriteSession) LastError() error { return s.lastErr }

// ReadSession is an open stream a caller reads one or more object
// graphs from with ReadObject.
type ReadSession struct {
	or       *reader.ObjectReader
	Header   model.Header
	Metadata []byte
	lastErr  error
}

// OpenReader reads and validates the stream header and optional
// metadata block, then returns a handle ready for ReadObject calls. The
// header's recorded configuration is cross-checked against opts: a
// stream written with reference preservation enabled cannot be read
// with it disabled, or vice versa, since the wire framing itself
// differs between the two modes.
func OpenReader(r io.Reader, opts Options) (*ReadSession, error) {
	cr := codec.NewReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	wantRefs := opts.ReferencePreservation != model.DoNotPreserve
	if h.ReferencesPreserved != wantRefs {
		return nil, model.NewError(model.WrongStreamConfiguration,
			fmt.Sprintf("stream was written with ReferencesPreserved=%v, reader expects %v", h.ReferencesPreserved, wantRefs))
	}
	wantStamping := !opts.DisableTypeStamping
	if h.TypeStampingEnabled != wantStamping {
		return nil, model.NewError(model.WrongStreamConfiguration,
			fmt.Sprintf("stream was written with TypeStampingEnabled=%v, reader expects %v", h.TypeStampingEnabled, wantStamping))
	}

	meta, err := readMetadata(cr)
	if err != nil {
		return nil, err
	}

	or := reader.NewObjectReaderFromCodec(cr, opts.ReadSurrogates, opts.readerOpts()...)
	return &ReadSession{or: or, Header: h, Metadata: meta}, nil
}

// ReadObject decodes the next root object of type T, and the graph
// reachable from it, from the session's stream.
func ReadObject[T any](s *ReadSession) (*T, error) {
	v, err := reader.ReadObject[T](s.or)
	if err != nil {
		s.lastErr = err
	}
	return v, err
}

func (s *ReadSession) LastError() error { return s.lastErr }

// Serialize is the one-shot façade for the common case: write a single
// root object graph to an in-memory buffer and return its bytes.
func Serialize(root any, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	s, err := OpenWriter(&buf, opts)
	if err != nil {
		return nil, err
	}
	if err := s.WriteObject(root); err != nil {
		return nil, err
	}
	if err := s.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Deserialize is the one-shot façade for reading a single root object
// graph back out of data written by Serialize.
func Deserialize[T any](data []byte, opts Options) (*T, error) {
	s, err := OpenReader(bytes.NewReader(data), opts)
	if err != nil {
		return nil, err
	}
	v, err := ReadObject[T](s)
	if err != nil {
		return nil, err
	}
	if n := s.or.BytesRead(); n != int64(len(data)) {
		s.lastErr = model.NewError(model.InvalidOperation, fmt.Sprintf("read consumed %d of %d bytes", n, len(data)))
		return nil, s.lastErr
	}
	return v, nil
}

// OpenRawReader reads and validates the stream header and optional
// metadata block like OpenReader, but returns the underlying
// codec.Reader positioned at the start of the object graph instead of
// an ObjectReader bound to a known Go type. Diagnostic tooling that
// wants to walk a stream's shape without knowing its concrete root
// type (see reader.Dump) uses this entry point instead of OpenReader.
func OpenRawReader(r io.Reader) (model.Header, []byte, *codec.Reader, error) {
	cr := codec.NewReader(r)
	h, err := readHeader(cr)
	if err != nil {
		return model.Header{}, nil, nil, err
	}
	meta, err := readMetadata(cr)
	if err != nil {
		return model.Header{}, nil, nil, err
	}
	return h, meta, cr, nil
}
