package cccl

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider counts how often the underlying capability query runs
type fakeProvider struct {
	props   DeviceProperties
	attrs   FuncAttributes
	err     error
	queries atomic.Int64
}

func (p *fakeProvider) Properties() DeviceProperties {
	return p.props
}

func (p *fakeProvider) FuncAttributes(EntryPoint) (FuncAttributes, error) {
	p.queries.Add(1)
	if p.err != nil {
		return FuncAttributes{}, p.err
	}
	return p.attrs, nil
}

func TestFuncAttributesCacheHit(t *testing.T) {
	provider := &fakeProvider{
		props: testProps(),
		attrs: FuncAttributes{MaxThreadsPerBlock: 1024, NumRegs: 32},
	}
	ctx := NewContext(WithCapabilityProvider(provider))
	defer ctx.Destroy()

	entry := entryPointFor[tinyClosure]()

	first, err := ctx.FuncAttributes(entry)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		attrs, err := ctx.FuncAttributes(entry)
		require.NoError(t, err)
		assert.Equal(t, first, attrs, "repeated queries must yield identical snapshots")
	}
	assert.Equal(t, int64(1), provider.queries.Load(), "cache hit must not re-trigger the query")
}

func TestFuncAttributesCacheConcurrentLookups(t *testing.T) {
	provider := &fakeProvider{
		props: testProps(),
		attrs: FuncAttributes{MaxThreadsPerBlock: 512, NumRegs: 64},
	}
	ctx := NewContext(WithCapabilityProvider(provider))
	defer ctx.Destroy()

	entry := entryPointFor[oversizeClosure]()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			attrs, err := ctx.FuncAttributes(entry)
			assert.NoError(t, err)
			assert.Equal(t, provider.attrs, attrs)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), provider.queries.Load(),
		"population must be mutually exclusive: one underlying query")
}

func TestFuncAttributesCacheKeyedByEntryPoint(t *testing.T) {
	provider := &fakeProvider{
		props: testProps(),
		attrs: FuncAttributes{MaxThreadsPerBlock: 1024},
	}
	ctx := NewContext(WithCapabilityProvider(provider))
	defer ctx.Destroy()

	_, err := ctx.FuncAttributes(entryPointFor[tinyClosure]())
	require.NoError(t, err)
	_, err = ctx.FuncAttributes(entryPointFor[oversizeClosure]())
	require.NoError(t, err)
	_, err = ctx.FuncAttributes(entryPointFor[tinyClosure]())
	require.NoError(t, err)

	assert.Equal(t, int64(2), provider.queries.Load(), "distinct entry points query separately")
}

func TestCacheSharedAcrossLaunchers(t *testing.T) {
	provider := &fakeProvider{
		props: testProps(),
		attrs: FuncAttributes{MaxThreadsPerBlock: 1024, NumRegs: 32},
	}
	ctx := NewContext(WithCapabilityProvider(provider))
	defer ctx.Destroy()

	a := NewLauncher[tinyClosure](ctx)
	b := NewLauncher[tinyClosure](ctx)

	_, err := a.BlockSizeForMaxOccupancy(0)
	require.NoError(t, err)
	_, err = b.BlockSizeForMaxOccupancy(0)
	require.NoError(t, err)

	assert.Equal(t, int64(1), provider.queries.Load(),
		"launchers over the same closure type share one entry point")
}

func TestProviderErrorPropagates(t *testing.T) {
	queryErr := errors.New("capability query failed")
	provider := &fakeProvider{props: testProps(), err: queryErr}
	ctx := NewContext(WithCapabilityProvider(provider))
	defer ctx.Destroy()

	l := NewLauncher[tinyClosure](ctx)
	err := l.Launch(tinyClosure{}, 1000)
	require.Error(t, err)
	assert.ErrorIs(t, err, queryErr)

	// failed queries are not cached
	_, err = ctx.FuncAttributes(l.EntryPoint())
	require.Error(t, err)
	assert.Equal(t, int64(2), provider.queries.Load())
}

func TestSimulatedProviderDeterministic(t *testing.T) {
	provider := &simulatedProvider{props: testProps()}

	entry := entryPointFor[oversizeClosure]()
	first, err := provider.FuncAttributes(entry)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		attrs, err := provider.FuncAttributes(entry)
		require.NoError(t, err)
		assert.Equal(t, first, attrs)
	}
}

func TestSimulatedProviderModelsTransport(t *testing.T) {
	provider := &simulatedProvider{props: testProps()}

	byValue, err := provider.FuncAttributes(entryPointFor[thresholdClosure]())
	require.NoError(t, err)
	byPointer, err := provider.FuncAttributes(entryPointFor[oversizeClosure]())
	require.NoError(t, err)

	// the by-value entry carries the closure in its argument footprint, the
	// by-pointer entry pays local memory for the register copy instead
	assert.Greater(t, byValue.NumRegs, byPointer.NumRegs)
	assert.Zero(t, byValue.LocalSizeBytes)
	assert.Equal(t, 512, byPointer.LocalSizeBytes)
	assert.LessOrEqual(t, byValue.NumRegs, maxModeledRegisters)
}
