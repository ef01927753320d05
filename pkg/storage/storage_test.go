package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemoryStoreDomainIsolation(t *testing.T) {
	s := NewMemoryStore()

	assert.True(t, s.Save("uid", "10086", "user"))
	assert.True(t, s.Save("uid", "20000", "guest"))

	assert.Equal(t, "10086", s.Get("uid", "user"))
	assert.Equal(t, "20000", s.Get("uid", "guest"))
}

func TestMemoryStoreDefaultDomain(t *testing.T) {
	s := NewMemoryStore()

	s.Save("canBackApp", "true", "")
	assert.Equal(t, "true", s.Get("canBackApp", DefaultDomain))
}

func TestMemoryStoreMissReturnsEmpty(t *testing.T) {
	s := NewMemoryStore()
	assert.Equal(t, "", s.Get("missing", "user"))
}

func TestMemoryStoreRemoveAndClear(t *testing.T) {
	s := NewMemoryStore()
	s.Save("a", "1", "d")
	s.Save("b", "2", "d")

	assert.True(t, s.Remove("a", "d"))
	assert.Equal(t, "", s.Get("a", "d"))
	assert.Equal(t, "2", s.Get("b", "d"))

	assert.True(t, s.Clear())
	assert.Equal(t, 0, s.Describe().Count)
}

func TestMemoryStoreDescribe(t *testing.T) {
	s := NewMemoryStore()
	s.Save("a", "1", "d")
	s.Save("b", "2", "e")

	info := s.Describe()
	assert.Equal(t, 2, info.Count)
	assert.ElementsMatch(t, []string{"d.a", "e.b"}, info.Keys)
}
