package identity

import (
	"context"
	"fmt"
	"sync"
)

// Resolver turns a DID into its document.
type Resolver interface {
	Resolve(ctx context.Context, did string) (*Document, error)
}

// Registry resolves did:key identifiers locally and every other method from
// documents registered up front.
type Registry struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

func NewRegistry(docs ...*Document) *Registry {
	r := &Registry{docs: make(map[string]*Document, len(docs))}
	for _, doc := range docs {
		r.Register(doc)
	}
	return r
}

// Register adds or replaces a document. Registered documents take precedence
// over derived did:key documents.
func (r *Registry) Register(doc *Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[doc.ID] = doc
}

func (r *Registry) Resolve(_ context.Context, did string) (*Document, error) {
	r.mu.RLock()
	doc, ok := r.docs[did]
	r.mu.RUnlock()
	if ok {
		return doc, nil
	}

	method, err := Method(did)
	if err != nil {
		return nil, err
	}
	if method != "key" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDID, did)
	}
	pub, err := PublicKeyFromKeyDID(did)
	if err != nil {
		return nil, err
	}
	return BuildDocument(did, pub)
}

var _ Resolver = (*Registry)(nil)
