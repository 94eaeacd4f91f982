package db

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingResolver struct {
	calls int
	ids   map[string]uuid.UUID
	err   error
}

func (r *countingResolver) ResolveCompany(_ context.Context, input *CompanyCreateInput) (uuid.UUID, error) {
	r.calls++
	if r.err != nil {
		return uuid.Nil, r.err
	}
	id, ok := r.ids[input.Name]
	if !ok {
		id = uuid.New()
		r.ids[input.Name] = id
	}
	return id, nil
}

func TestCompanyCache_CaseInsensitiveHit(t *testing.T) {
	next := &countingResolver{ids: map[string]uuid.UUID{}}
	cache, err := NewCompanyCache(next, 0)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := cache.ResolveCompany(ctx, &CompanyCreateInput{Name: "Alan"})
	require.NoError(t, err)
	for _, name := range []string{"ALAN", "alan", "  Alan "} {
		id, err := cache.ResolveCompany(ctx, &CompanyCreateInput{Name: name})
		require.NoError(t, err)
		assert.Equal(t, first, id, name)
	}

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, 1, cache.Len())
}

func TestCompanyCache_ErrorsAreNotCached(t *testing.T) {
	next := &countingResolver{ids: map[string]uuid.UUID{}, err: errors.New("db down")}
	cache, err := NewCompanyCache(next, 4)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = cache.ResolveCompany(ctx, &CompanyCreateInput{Name: "Acme"})
	require.Error(t, err)
	assert.Equal(t, 0, cache.Len())

	next.err = nil
	id, err := cache.ResolveCompany(ctx, &CompanyCreateInput{Name: "Acme"})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.Equal(t, 2, next.calls)
}

func TestCompanyCache_Evicts(t *testing.T) {
	next := &countingResolver{ids: map[string]uuid.UUID{}}
	cache, err := NewCompanyCache(next, 2)
	require.NoError(t, err)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		_, err := cache.ResolveCompany(ctx, &CompanyCreateInput{Name: name})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cache.Len())

	// "A" was evicted and is resolved again
	_, err = cache.ResolveCompany(ctx, &CompanyCreateInput{Name: "A"})
	require.NoError(t, err)
	assert.Equal(t, 4, next.calls)
}
