package db

import (
	"context"
	"strings"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCompanyCacheSize bounds the number of company ids kept in memory.
const DefaultCompanyCacheSize = 1024

// CompanyResolver resolves a company name to an id, creating the company if needed.
type CompanyResolver interface {
	ResolveCompany(ctx context.Context, input *CompanyCreateInput) (uuid.UUID, error)
}

// CompanyCache keeps recently resolved company ids in a per-process LRU so
// repeated analyses of the same employer skip the lookup query. Companies are
// never renamed or deleted by the pipeline, so a cached id stays valid.
type CompanyCache struct {
	next  CompanyResolver
	cache *lru.Cache[string, uuid.UUID]
}

// NewCompanyCache wraps next with an LRU of the given size (DefaultCompanyCacheSize if <= 0).
func NewCompanyCache(next CompanyResolver, size int) (*CompanyCache, error) {
	if size <= 0 {
		size = DefaultCompanyCacheSize
	}
	cache, err := lru.New[string, uuid.UUID](size)
	if err != nil {
		return nil, err
	}
	return &CompanyCache{next: next, cache: cache}, nil
}

// ResolveCompany returns the cached id for the name, or resolves and caches it.
func (c *CompanyCache) ResolveCompany(ctx context.Context, input *CompanyCreateInput) (uuid.UUID, error) {
	key := strings.ToLower(NormalizeName(input.Name))
	if id, ok := c.cache.Get(key); ok {
		return id, nil
	}

	id, err := c.next.ResolveCompany(ctx, input)
	if err != nil {
		return uuid.Nil, err
	}
	c.cache.Add(key, id)
	return id, nil
}

// Len returns the number of cached names.
func (c *CompanyCache) Len() int {
	return c.cache.Len()
}
