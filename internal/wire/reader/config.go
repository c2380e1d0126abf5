package reader

import "github.com/mabhi256/objwire/internal/wire/model"

// Config mirrors writer.Config: it must match the configuration the
// stream was written with, except VersionTolerance, which is purely a
// reader-side policy over however the stream's types have drifted from
// the local ones.
type Config struct {
	ReferencePreservation       model.ReferencePreservation
	TreatCollectionAsUserObject bool
	Tolerance                   model.VersionTolerance
}

type Option func(*Config)

func WithReferencePreservation(p model.ReferencePreservation) Option {
	return func(c *Config) { c.ReferencePreservation = p }
}

func WithCollectionsAsUserObjects() Option {
	return func(c *Config) { c.TreatCollectionAsUserObject = true }
}

func WithVersionTolerance(t model.VersionTolerance) Option {
	return func(c *Config) { c.Tolerance = t }
}
