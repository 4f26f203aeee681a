package permission_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/annelo/cmdblock-server/internal/permission"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_DefaultsGrantsAndRevokes(t *testing.T) {
	s := permission.NewStore(permission.Config{
		Defaults:  []string{"chat"},
		Operators: []string{"Admin"},
		Players:   map[string][]string{"Alice": {"commandblock.use"}},
	})

	assert.True(t, s.HasCapability("bob", "chat"), "defaults apply to everyone")
	assert.False(t, s.HasCapability("bob", "commandblock.use"))
	assert.True(t, s.HasCapability("alice", "commandblock.use"), "names are case-insensitive")
	assert.True(t, s.HasCapability("ADMIN", "anything"), "operators hold every capability")

	s.Revoke("bob", "chat")
	assert.False(t, s.HasCapability("bob", "chat"), "defaults can be revoked per player")

	s.Grant("bob", "chat")
	assert.True(t, s.HasCapability("bob", "chat"), "grant lifts a revocation")

	s.Revoke("admin", "anything")
	assert.True(t, s.HasCapability("admin", "anything"), "operators cannot be revoked")

	s.Grant("carol", permission.Wildcard)
	assert.True(t, s.HasCapability("carol", "commandblock.edit"))
	assert.True(t, s.IsOperator("admin"))
	assert.False(t, s.IsOperator("carol"))
}

func TestStore_Capabilities(t *testing.T) {
	s := permission.NewStore(permission.Config{Defaults: []string{"b", "a"}})
	s.Grant("p", "c")
	s.Revoke("p", "a")
	assert.Equal(t, []string{"b", "c"}, s.Capabilities("p"))
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "permissions.yaml")
	content := []byte("defaults: [commandblock.use]\noperators: [root]\nplayers:\n  alice: [commandblock.edit]\n")
	require.NoError(t, os.WriteFile(path, content, 0644))

	s, err := permission.LoadFile(path)
	require.NoError(t, err)
	assert.True(t, s.HasCapability("bob", "commandblock.use"))
	assert.False(t, s.HasCapability("bob", "commandblock.edit"))
	assert.True(t, s.HasCapability("alice", "commandblock.edit"))
	assert.True(t, s.HasCapability("root", "x"))
}

func TestLoadFile_MissingAndInvalid(t *testing.T) {
	dir := t.TempDir()

	s, err := permission.LoadFile(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	assert.False(t, s.HasCapability("bob", "commandblock.use"))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("defaults: {"), 0644))
	_, err = permission.LoadFile(bad)
	assert.Error(t, err)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := permission.NewStore(permission.Config{})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Grant("p", "x")
		}()
		go func() {
			defer wg.Done()
			_ = s.HasCapability("p", "x")
		}()
	}
	wg.Wait()
	assert.True(t, s.HasCapability("p", "x"))
}
