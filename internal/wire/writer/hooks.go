package writer

// PreSerializer is implemented by a type that wants to run logic
// immediately before its fields are written (spec §4.E / §4.F
// lifecycle hooks — the serialization half).
type PreSerializer interface {
	OnPreSerialization()
}

// PostSerializer is implemented by a type that wants to run logic
// immediately after its fields have been written.
type PostSerializer interface {
	OnPostSerialization()
}
