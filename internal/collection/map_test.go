package collection

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncMap(t *testing.T) {
	m := NewSyncMap[string, int]()
	_, stored := m.PutIfAbsent("a", 1)
	assert.True(t, stored)
	prev, stored := m.PutIfAbsent("a", 2)
	assert.False(t, stored)
	assert.Equal(t, 1, prev)
	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	m.PutIfAbsent("b", 2)
	assert.Equal(t, 2, m.Len())

	m.Range(func(key string, value int) bool {
		m.Delete(key)
		return true
	})
	assert.Equal(t, 0, m.Len())

	m.PutIfAbsent("c", 3)
	v, ok = m.LoadAndDelete("c")
	assert.True(t, ok)
	assert.Equal(t, 3, v)
	_, ok = m.LoadAndDelete("c")
	assert.False(t, ok)
}

func TestSyncMap_Concurrent(t *testing.T) {
	m := NewSyncMap[int, int]()
	wg := sync.WaitGroup{}
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.PutIfAbsent(i, i)
			m.Get(i)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 16, m.Len())
}
