package reader

// PostDeserializer is implemented by a type that wants to run logic
// once the whole graph has been populated and every reference resolved
// (spec §4.F step 5: hooks fire in id order, after the graph is
// complete, so a hook can safely follow references to other objects).
// Hooks fire only when references are preserved: a graph read with
// DoNotPreserve fires none.
type PostDeserializer interface {
	OnPostDeserialization()
}
