package zookeeper

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-zookeeper/zk"
)

// mockClient is an in-memory stand-in for the ZooKeeper client. It mimics
// sequential-ephemeral claim naming and fires GetW watches on Delete.
type mockClient struct {
	mu      sync.Mutex
	path    string
	claims  []string
	nextID  int
	created []string
	watches map[string][]chan zk.Event
}

func newMockClient() *mockClient {
	return &mockClient{
		path:    "/locks",
		watches: map[string][]chan zk.Event{},
	}
}

func newMockZooKeeperLock() *ZooKeeperLock {
	return &ZooKeeperLock{
		c:    newMockClient(),
		Path: "/locks",
	}
}

func (m *mockClient) Children(path string) ([]string, *zk.Stat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var names []string
	for _, c := range m.claims {
		names = append(names, strings.TrimPrefix(c, m.path+"/"))
	}

	return names, nil, nil
}

func (m *mockClient) Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.created {
		if c == path {
			return "", zk.ErrNodeExists
		}
	}
	m.created = append(m.created, path)

	return path, nil
}

func (m *mockClient) CreateProtectedEphemeralSequential(path string, data []byte, acl []zk.ACL) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Mimic the sequential znode naming scheme. If path is "/locks/lock-",
	// we want "/locks/_c_979cb11f40bb3dbc6908edeaac8f2de1-lock-0000000001".
	m.nextID++
	node := fmt.Sprintf("%s/_c_979cb11f40bb3dbc6908edeaac8f2de1-lock-%010d", m.path, m.nextID)
	m.claims = append(m.claims, node)

	return node, nil
}

func (m *mockClient) Delete(path string, version int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var remaining []string
	var found bool
	for _, c := range m.claims {
		if c == path {
			found = true
			continue
		}
		remaining = append(remaining, c)
	}
	m.claims = remaining

	if !found {
		return zk.ErrNoNode
	}

	// Fire any watches parked on the deleted znode.
	for _, w := range m.watches[path] {
		w <- zk.Event{Type: zk.EventNodeDeleted, Path: path}
	}
	delete(m.watches, path)

	return nil
}

func (m *mockClient) GetW(path string) ([]byte, *zk.Stat, <-chan zk.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var exists bool
	for _, c := range m.claims {
		if c == path {
			exists = true
			break
		}
	}
	if !exists {
		return nil, nil, nil, zk.ErrNoNode
	}

	w := make(chan zk.Event, 1)
	m.watches[path] = append(m.watches[path], w)

	return nil, &zk.Stat{Version: 1}, w, nil
}

func (m *mockClient) Close() {}
