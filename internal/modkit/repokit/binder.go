package repokit

// Binder binds a repository implementation to a concrete Queryer at wiring
// time. Services keep the binder around so transactional flows can rebind
// the same repo onto a tx-scoped querier
type Binder[T any] interface {
	Bind(Queryer) T
}
