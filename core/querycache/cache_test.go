package querycache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counter is a fetch returning the number of times it ran.
type counter struct {
	calls atomic.Int32
	gate  chan struct{} // when set, fetches wait on it
}

func (c *counter) fetch(ctx context.Context) (interface{}, error) {
	n := c.calls.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	return int(n), nil
}

func TestCache_GetCachesFirstFetch(t *testing.T) {
	ctx := context.Background()
	c := NewCache(0, nil)
	cnt := &counter{}

	for i := 0; i < 3; i++ {
		v, err := c.Get(ctx, MajorList(), cnt.fetch)
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	}
	assert.EqualValues(t, 1, cnt.calls.Load())
}

func TestCache_DeduplicatesConcurrentFetches(t *testing.T) {
	ctx := context.Background()
	c := NewCache(0, nil)
	cnt := &counter{gate: make(chan struct{})}

	var wg sync.WaitGroup
	results := make([]interface{}, 10)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetFresh(ctx, MajorTaxes("1"), cnt.fetch)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(cnt.gate)
	wg.Wait()

	assert.EqualValues(t, 1, cnt.calls.Load())
	for _, v := range results {
		assert.Equal(t, 1, v)
	}
}

func TestCache_GetServesStaleWhileRevalidating(t *testing.T) {
	ctx := context.Background()
	c := NewCache(0, nil)
	cnt := &counter{}
	key := DashboardSuper()

	v, err := c.Get(ctx, key, cnt.fetch)
	require.NoError(t, err)
	require.Equal(t, 1, v)

	cnt.gate = make(chan struct{})
	c.Invalidate(key)

	// the refetch is blocked: readers get the previous value without waiting
	for i := 0; i < 3; i++ {
		v, err = c.Get(ctx, key, cnt.fetch)
		require.NoError(t, err)
		assert.Equal(t, 1, v)
	}
	close(cnt.gate)

	require.Eventually(t, func() bool {
		v, err := c.Get(ctx, key, cnt.fetch)
		return err == nil && v == 2
	}, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 2, cnt.calls.Load())
}

func TestCache_GetFreshBlocksOnInvalidatedKey(t *testing.T) {
	ctx := context.Background()
	c := NewCache(0, nil)
	cnt := &counter{}
	key := StudentMajors("s1")

	_, err := c.GetFresh(ctx, key, cnt.fetch)
	require.NoError(t, err)

	c.Invalidate(StudentMajors(AnyID))
	v, err := c.GetFresh(ctx, key, cnt.fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestCache_Mutate(t *testing.T) {
	ctx := context.Background()
	errWrite := errors.New("write failed")

	setup := func() (*Cache, map[Key]*counter) {
		c := NewCache(0, nil)
		counters := map[Key]*counter{
			MajorTaxes("m1"): {},
			MajorTaxes("m2"): {},
			TaxList():        {},
			LogList():        {},
		}
		for k, cnt := range counters {
			_, err := c.GetFresh(ctx, k, cnt.fetch)
			require.NoError(t, err)
		}
		return c, counters
	}
	refetch := func(c *Cache, counters map[Key]*counter) map[Key]int32 {
		calls := make(map[Key]int32, len(counters))
		for k, cnt := range counters {
			_, err := c.GetFresh(ctx, k, cnt.fetch)
			require.NoError(t, err)
			calls[k] = cnt.calls.Load()
		}
		return calls
	}

	t.Run("success invalidates the derived views", func(t *testing.T) {
		c, counters := setup()
		err := c.Mutate(ctx, Mutation{Entity: Majors, Op: Associate, ID: "m1"}, func(context.Context) error { return nil })
		require.NoError(t, err)

		assert.Equal(t, map[Key]int32{
			MajorTaxes("m1"): 2,
			MajorTaxes("m2"): 1,
			TaxList():        1,
			LogList():        2,
		}, refetch(c, counters))
	})

	t.Run("failure leaves every key untouched", func(t *testing.T) {
		c, counters := setup()
		err := c.Mutate(ctx, Mutation{Entity: Majors, Op: Associate, ID: "m1"}, func(context.Context) error { return errWrite })
		assert.Equal(t, errWrite, err)

		for _, calls := range refetch(c, counters) {
			assert.EqualValues(t, 1, calls)
		}
	})
}

func TestCache_RetriesFetchRacingAnInvalidation(t *testing.T) {
	ctx := context.Background()
	c := NewCache(0, nil)
	key := PaymentList()

	var calls int
	fetch := func(context.Context) (interface{}, error) {
		calls++
		if calls == 1 {
			c.Invalidate(key) // a mutation lands while the first fetch runs
			return "before", nil
		}
		return "after", nil
	}

	v, err := c.Get(ctx, key, fetch)
	require.NoError(t, err)
	assert.Equal(t, "after", v)
	assert.Equal(t, 2, calls)

	// the retried value is cached
	v, err = c.GetFresh(ctx, key, fetch)
	require.NoError(t, err)
	assert.Equal(t, "after", v)
	assert.Equal(t, 2, calls)
}

func TestCache_FetchErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	c := NewCache(0, nil)
	errFetch := errors.New("boom")

	_, err := c.Get(ctx, TaxList(), func(context.Context) (interface{}, error) { return nil, errFetch })
	assert.Equal(t, errFetch, err)

	v, err := c.Get(ctx, TaxList(), func(context.Context) (interface{}, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestCache_MaxAge(t *testing.T) {
	ctx := context.Background()
	c := NewCache(time.Minute, nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.nowFunc = func() time.Time { return now }
	cnt := &counter{}

	_, err := c.GetFresh(ctx, LogList(), cnt.fetch)
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	v, _ := c.GetFresh(ctx, LogList(), cnt.fetch)
	assert.Equal(t, 1, v)

	now = now.Add(time.Minute)
	v, _ = c.GetFresh(ctx, LogList(), cnt.fetch)
	assert.Equal(t, 2, v)
}

func TestCache_CancelledReaderDoesNotAbortFetch(t *testing.T) {
	c := NewCache(0, nil)
	cnt := &counter{gate: make(chan struct{})}
	key := UserList()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		_, err := c.Get(ctx, key, cnt.fetch)
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(cnt.gate)
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		e, ok := c.entries[key]
		return ok && e.valid
	}, time.Second, 5*time.Millisecond)

	v, err := c.GetFresh(context.Background(), key, cnt.fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.EqualValues(t, 1, cnt.calls.Load())
}

func TestRead(t *testing.T) {
	ctx := context.Background()
	c := NewCache(0, nil)

	names, err := Read(ctx, c, TaxList(), func(context.Context) ([]string, error) {
		return []string{"VAT", "Stamp"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"VAT", "Stamp"}, names)

	_, err = ReadFresh(ctx, c, TaxList(), func(context.Context) (int, error) { return 1, nil })
	assert.Error(t, err)
}
