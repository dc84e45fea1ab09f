package registry_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/localrivet/gomcp/registry"
)

func TestAddFiresUpdatedThenListChanged(t *testing.T) {
	reg := registry.New[int]()
	var order []string
	var mu sync.Mutex
	unregister := reg.AddListener(&registry.ChangeListener[int]{
		OnUpdated: func(key string, value int, op registry.Op) {
			mu.Lock()
			order = append(order, "updated:"+key)
			mu.Unlock()
		},
		OnListChanged: func() {
			mu.Lock()
			order = append(order, "list")
			mu.Unlock()
		},
	})
	defer unregister()

	reg.Add("a", 1)

	v, ok := reg.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)
	require.Equal(t, []string{"updated:a", "list"}, order)
}

func TestRemoveAllFiresSingleListChanged(t *testing.T) {
	reg := registry.New[int]()
	reg.AddAll(map[string]int{"a": 1, "b": 2, "c": 3})

	var listFires int
	var mu sync.Mutex
	reg.AddListener(&registry.ChangeListener[int]{
		OnListChanged: func() {
			mu.Lock()
			listFires++
			mu.Unlock()
		},
	})

	reg.RemoveAll([]string{"a", "b"})
	require.Equal(t, 1, listFires)
	require.Equal(t, 1, reg.Len())
}

func TestListPreservesInsertionOrder(t *testing.T) {
	reg := registry.New[string]()
	reg.Add("z", "first")
	reg.Add("a", "second")
	reg.Add("m", "third")

	values := reg.List()
	require.Equal(t, []string{"first", "second", "third"}, values)
}

func TestTemplateRegistryDeterministicFirstMatchWins(t *testing.T) {
	tr := registry.NewTemplateRegistry[string]()
	_, err := tr.Add("file:///{path*}", "catch-all")
	require.NoError(t, err)
	_, err = tr.Add("file:///docs/{name}", "docs-specific")
	require.NoError(t, err)

	value, vars, ok := tr.Match("file:///docs/readme")
	require.True(t, ok)
	// Registered first, so the greedy catch-all wins even though the
	// more specific template also matches.
	require.Equal(t, "catch-all", value)
	require.Equal(t, "docs/readme", vars["path"])
}

func TestTemplateMatchExtractsSegmentVars(t *testing.T) {
	tr := registry.NewTemplateRegistry[string]()
	_, err := tr.Add("users://{id}/profile", "profile")
	require.NoError(t, err)

	_, vars, ok := tr.Match("users://42/profile")
	require.True(t, ok)
	require.Equal(t, "42", vars["id"])

	_, _, ok = tr.Match("users://42/settings")
	require.False(t, ok)
}

func TestTemplateMatchExtractsQueryVars(t *testing.T) {
	tr := registry.NewTemplateRegistry[string]()
	_, err := tr.Add("search://results{?q}", "search")
	require.NoError(t, err)

	_, vars, ok := tr.Match("search://results?q=golang")
	require.True(t, ok)
	require.Equal(t, "golang", vars["q"])
}
