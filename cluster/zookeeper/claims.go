package zookeeper

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ClaimEntries is a container of lock claims at one point in time.
type ClaimEntries struct {
	// Map of claim ID integer to the full znode path.
	m map[int]string
	// List of IDs ascending.
	l []int
}

// claims returns a ClaimEntries of all current claims under the lock path.
func (z *ZooKeeperLock) claims() (ClaimEntries, error) {
	entries := ClaimEntries{
		m: map[int]string{},
		l: []int{},
	}

	nodes, _, err := z.c.Children(z.Path)
	if err != nil {
		return entries, err
	}

	for _, n := range nodes {
		id, err := idFromZnode(n)
		// Ignore junk entries.
		if err == ErrInvalidSeqNode {
			continue
		}

		entries.m[id] = fmt.Sprintf("%s/%s", z.Path, n)
		entries.l = append(entries.l, id)
	}

	sort.Ints(entries.l)

	return entries, nil
}

// IDs returns all claim IDs ascending.
func (ce ClaimEntries) IDs() []int {
	return ce.l
}

// First returns the ID with the lowest value.
func (ce ClaimEntries) First() (int, error) {
	if len(ce.l) == 0 {
		return 0, fmt.Errorf("no active claims")
	}

	return ce.l[0], nil
}

// Path takes a claim ID and returns the znode path.
func (ce ClaimEntries) Path(id int) (string, error) {
	if path, exists := ce.m[id]; exists {
		return path, nil
	}

	return "", fmt.Errorf("claim ID %d doesn't exist", id)
}

// Ahead returns the claim immediately ahead of the ID provided.
func (ce ClaimEntries) Ahead(id int) (int, error) {
	for i, next := range ce.l {
		if next == id && i > 0 {
			return ce.l[i-1], nil
		}
	}

	return 0, fmt.Errorf("unable to determine which claim to enqueue behind")
}

// idFromZnode parses the trailing sequence integer from a sequential znode
// name, e.g. "_c_abc123-lock-0000000012" yields 12.
func idFromZnode(node string) (int, error) {
	i := strings.LastIndex(node, "-")
	if i < 0 || i == len(node)-1 {
		return 0, ErrInvalidSeqNode
	}

	id, err := strconv.Atoi(node[i+1:])
	if err != nil {
		return 0, ErrInvalidSeqNode
	}

	return id, nil
}
