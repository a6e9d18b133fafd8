// Package registry implements persistence for the ordered build registry.
//
// The FileRepository stores the registry as a single JSON document whose key
// order is the canonical build sequence, and exposes a Repository interface
// that the server service depends on. Mutations are whole-document
// load-mutate-rewrite cycles under a writer mutex.
package registry
