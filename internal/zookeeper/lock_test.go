package zookeeper

import (
	"errors"
	"testing"

	"github.com/go-zookeeper/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredecessorOrdersBySequence(t *testing.T) {
	children := []string{
		"_c_bbb-lock-0000000003",
		"_c_aaa-lock-0000000001",
		"_c_ccc-lock-0000000002",
	}

	prev, first, found := predecessor(children, "_c_bbb-lock-0000000003")
	assert.True(t, found)
	assert.False(t, first)
	assert.Equal(t, "_c_ccc-lock-0000000002", prev)

	_, first, found = predecessor(children, "_c_aaa-lock-0000000001")
	assert.True(t, found)
	assert.True(t, first)

	_, _, found = predecessor(children, "_c_zzz-lock-0000000009")
	assert.False(t, found)
}

func TestLockPath(t *testing.T) {
	assert.Equal(t, "/distributed_locks/partner-p_1", LockPath("partner-p/1"))
}

type createCall struct {
	path      string
	flags     int32
	container bool
}

// recordingCreator 记录建节点请求，existing 中的路径返回 ErrNodeExists
type recordingCreator struct {
	calls    []createCall
	existing map[string]bool
	err      error
}

func (r *recordingCreator) create(path string, flags int32, container bool) (string, error) {
	r.calls = append(r.calls, createCall{path: path, flags: flags, container: container})
	if r.err != nil {
		return "", r.err
	}
	if r.existing[path] {
		return "", zk.ErrNodeExists
	}
	return path, nil
}

func (r *recordingCreator) Create(path string, _ []byte, flags int32, _ []zk.ACL) (string, error) {
	return r.create(path, flags, false)
}

func (r *recordingCreator) CreateContainer(path string, _ []byte, flags int32, _ []zk.ACL) (string, error) {
	return r.create(path, flags, true)
}

func TestEnsureLockPathUsesContainerForResource(t *testing.T) {
	c := &recordingCreator{}
	require.NoError(t, ensureLockPath(c, LockPath("partner-p1")))

	require.Len(t, c.calls, 2)
	assert.Equal(t, createCall{path: lockRoot, flags: zk.FlagPersistent}, c.calls[0])
	assert.Equal(t, createCall{path: "/distributed_locks/partner-p1", flags: zk.FlagContainer, container: true}, c.calls[1])
}

func TestEnsureLockPathToleratesExistingNodes(t *testing.T) {
	path := LockPath("partner-p1")
	c := &recordingCreator{existing: map[string]bool{lockRoot: true, path: true}}

	require.NoError(t, ensureLockPath(c, path))
	assert.Len(t, c.calls, 2)
}

func TestEnsureLockPathReturnsCreateError(t *testing.T) {
	c := &recordingCreator{err: zk.ErrNoAuth}

	err := ensureLockPath(c, LockPath("partner-p1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, zk.ErrNoAuth))
	assert.Len(t, c.calls, 1)
}
