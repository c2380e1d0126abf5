package writer

import "github.com/mabhi256/objwire/internal/wire/model"

// Config controls how an ObjectWriter frames a graph. The zero Config
// does not preserve references (DoNotPreserve is the zero
// ReferencePreservation), stamps types, and frames collections inline.
type Config struct {
	ReferencePreservation       model.ReferencePreservation
	DisableTypeStamping         bool
	TreatCollectionAsUserObject bool
}

// Option mutates a Config being built up by NewObjectWriter.
type Option func(*Config)

func WithReferencePreservation(p model.ReferencePreservation) Option {
	return func(c *Config) { c.ReferencePreservation = p }
}

func WithTypeStampingDisabled() Option {
	return func(c *Config) { c.DisableTypeStamping = true }
}

// WithCollectionsAsUserObjects promotes map-kind collections to
// reference-table-tracked objects with their own id, instead of
// framing them inline at every reference site. Go slices have no
// referential identity of their own (no stable address independent of
// a wrapping pointer), so only maps participate in this mode — a
// Go-specific narrowing of the general "collection as user object"
// option.
func WithCollectionsAsUserObjects() Option {
	return func(c *Config) { c.TreatCollectionAsUserObject = true }
}
