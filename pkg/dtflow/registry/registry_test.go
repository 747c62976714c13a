package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	r := New[string, int]()
	assert.NotNil(t, r)
	assert.Equal(t, 0, r.Len())
}

func TestRegisterAndGet(t *testing.T) {
	r := New[string, int]()

	r.Register("one", 1)
	r.Register("two", 2)

	v, ok := r.Get("one")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = r.Get("two")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	// Non-existent key
	v, ok = r.Get("three")
	assert.False(t, ok)
	assert.Equal(t, 0, v) // zero value
}

func TestRegisterOverwrite(t *testing.T) {
	r := New[string, string]()

	r.Register("key", "old")
	r.Register("key", "new")

	v, ok := r.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "new", v)
}

func TestRegisterMany(t *testing.T) {
	r := New[string, int]()

	entries := map[string]int{
		"one":   1,
		"two":   2,
		"three": 3,
	}
	r.RegisterMany(entries)

	assert.Equal(t, 3, r.Len())

	for k, v := range entries {
		got, ok := r.Get(k)
		assert.True(t, ok)
		assert.Equal(t, v, got)
	}
}

func TestRegisterManyEmpty(t *testing.T) {
	r := New[string, int]()
	r.Register("existing", 42)

	r.RegisterMany(map[string]int{})

	assert.Equal(t, 1, r.Len())
}

func TestMustGet(t *testing.T) {
	r := New[string, int]()
	r.Register("key", 42)

	v := r.MustGet("key")
	assert.Equal(t, 42, v)
}

func TestMustGetPanic(t *testing.T) {
	r := New[string, int]()

	assert.PanicsWithValue(t, `registry: key missing.delegate not found`, func() {
		r.MustGet("missing.delegate")
	})
}

func TestHas(t *testing.T) {
	r := New[string, int]()
	r.Register("key", 42)

	assert.True(t, r.Has("key"))
	assert.False(t, r.Has("nonexistent"))
}

func TestDelete(t *testing.T) {
	r := New[string, int]()
	r.Register("key", 42)

	assert.True(t, r.Has("key"))

	r.Delete("key")

	assert.False(t, r.Has("key"))
	_, ok := r.Get("key")
	assert.False(t, ok)
}

func TestDeleteNonexistent(t *testing.T) {
	r := New[string, int]()
	r.Register("key", 42)

	// Should not panic
	r.Delete("nonexistent")

	assert.Equal(t, 1, r.Len())
}

func TestKeys(t *testing.T) {
	r := New[string, int]()
	r.Register("one", 1)
	r.Register("two", 2)
	r.Register("three", 3)

	keys := r.Keys()

	assert.Len(t, keys, 3)
	assert.ElementsMatch(t, []string{"one", "two", "three"}, keys)
}

func TestKeysEmpty(t *testing.T) {
	r := New[string, int]()
	keys := r.Keys()
	assert.Empty(t, keys)
}

func TestLen(t *testing.T) {
	r := New[string, int]()
	assert.Equal(t, 0, r.Len())

	r.Register("one", 1)
	assert.Equal(t, 1, r.Len())

	r.Register("two", 2)
	assert.Equal(t, 2, r.Len())

	r.Delete("one")
	assert.Equal(t, 1, r.Len())
}

func TestRange(t *testing.T) {
	r := New[string, int]()
	r.Register("one", 1)
	r.Register("two", 2)
	r.Register("three", 3)

	visited := make(map[string]int)
	r.Range(func(k string, v int) bool {
		visited[k] = v
		return true
	})

	assert.Equal(t, map[string]int{"one": 1, "two": 2, "three": 3}, visited)
}

func TestRangeEarlyStop(t *testing.T) {
	r := New[string, int]()
	r.Register("one", 1)
	r.Register("two", 2)
	r.Register("three", 3)

	count := 0
	r.Range(func(k string, v int) bool {
		count++
		return false // stop after first
	})

	assert.Equal(t, 1, count)
}

func TestRangeEmpty(t *testing.T) {
	r := New[string, int]()

	called := false
	r.Range(func(k string, v int) bool {
		called = true
		return true
	})

	assert.False(t, called)
}

func TestRangeAllowsMutation(t *testing.T) {
	r := New[string, int]()
	r.Register("one", 1)
	r.Register("two", 2)

	// Range works over a snapshot, so mutations are safe mid-iteration
	r.Range(func(k string, v int) bool {
		r.Register("new-"+k, v*10)
		return true
	})

	assert.True(t, r.Has("one"))
	assert.True(t, r.Has("two"))
	assert.True(t, r.Has("new-one"))
	assert.True(t, r.Has("new-two"))
	assert.Equal(t, 4, r.Len())
}

// Key types other than string.

func TestIntegerKeys(t *testing.T) {
	r := New[int, string]()
	r.Register(1, "one")
	r.Register(2, "two")

	v, ok := r.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "one", v)
}

func TestStructKeys(t *testing.T) {
	type Key struct {
		Kind string
		Name string
	}

	r := New[Key, int]()
	k1 := Key{Kind: "delegate", Name: "correct_phi"}
	k2 := Key{Kind: "selector", Name: "has_segments"}

	r.Register(k1, 1)
	r.Register(k2, 2)

	v, ok := r.Get(k1)
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = r.Get(k2)
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

// Thread-safety tests

func TestConcurrentRegister(t *testing.T) {
	r := New[int, int]()
	var wg sync.WaitGroup
	n := 1000

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(val int) {
			defer wg.Done()
			r.Register(val, val*2)
		}(i)
	}

	wg.Wait()

	assert.Equal(t, n, r.Len())
	for i := 0; i < n; i++ {
		v, ok := r.Get(i)
		assert.True(t, ok)
		assert.Equal(t, i*2, v)
	}
}

func TestConcurrentGet(t *testing.T) {
	r := New[int, int]()
	for i := 0; i < 100; i++ {
		r.Register(i, i*2)
	}

	var wg sync.WaitGroup
	n := 100

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				v, ok := r.Get(i)
				assert.True(t, ok)
				assert.Equal(t, i*2, v)
			}
		}()
	}

	wg.Wait()
}

func TestConcurrentReadWrite(t *testing.T) {
	r := New[int, int]()
	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Writers
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(writerID int) {
			defer wg.Done()
			for j := 0; ; j++ {
				select {
				case <-stop:
					return
				default:
					r.Register(writerID*1000+j, j)
				}
			}
		}(i)
	}

	// Readers
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					r.Keys()
					r.Len()
				}
			}
		}()
	}

	close(stop)
	wg.Wait()
}

func TestConcurrentDelete(t *testing.T) {
	r := New[int, int]()
	for i := 0; i < 100; i++ {
		r.Register(i, i)
	}

	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(key int) {
			defer wg.Done()
			r.Delete(key)
		}(i)
	}

	wg.Wait()

	assert.Equal(t, 0, r.Len())
}

// Edge cases

func TestZeroValueKey(t *testing.T) {
	r := New[int, string]()
	r.Register(0, "zero")

	v, ok := r.Get(0)
	assert.True(t, ok)
	assert.Equal(t, "zero", v)
}

func TestEmptyStringKey(t *testing.T) {
	r := New[string, int]()
	r.Register("", 42)

	v, ok := r.Get("")
	assert.True(t, ok)
	assert.Equal(t, 42, v)
}

func TestNilValue(t *testing.T) {
	r := New[string, *int]()
	r.Register("nil", nil)

	v, ok := r.Get("nil")
	assert.True(t, ok)
	assert.Nil(t, v)

	// Distinguish nil value from missing key
	_, ok = r.Get("missing")
	assert.False(t, ok)
}

// TestCallableResolution exercises the registry the way the config loader
// uses it: qualified names bound to functions, resolved at build time.
func TestCallableResolution(t *testing.T) {
	type Delegate func(kwargs map[string]any) (any, error)

	delegates := New[string, Delegate]()

	delegates.Register("calib.scale", func(kwargs map[string]any) (any, error) {
		factor, _ := kwargs["factor"].(float64)
		return factor * 2, nil
	})
	delegates.Register("calib.offset", func(kwargs map[string]any) (any, error) {
		return 0.5, nil
	})

	fn, ok := delegates.Get("calib.scale")
	require.True(t, ok)

	result, err := fn(map[string]any{"factor": 21.0})
	require.NoError(t, err)
	assert.Equal(t, 42.0, result)

	_, ok = delegates.Get("calib.unknown")
	assert.False(t, ok)
}

// Benchmarks

func BenchmarkGet(b *testing.B) {
	r := New[int, int]()
	for i := 0; i < 1000; i++ {
		r.Register(i, i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Get(i % 1000)
	}
}

func BenchmarkRegister(b *testing.B) {
	r := New[int, int]()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Register(i, i)
	}
}

func BenchmarkConcurrentGet(b *testing.B) {
	r := New[int, int]()
	for i := 0; i < 1000; i++ {
		r.Register(i, i)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			r.Get(i % 1000)
			i++
		}
	})
}
