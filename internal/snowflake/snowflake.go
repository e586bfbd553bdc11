package snowflake

import (
	"fmt"
	"sync"
	"time"
)

// Epoch is 2024-01-01T00:00:00Z in Unix milliseconds. IDs embed the
// millisecond offset from this instant in their upper 41 bits.
const Epoch int64 = 1704067200000

const (
	nodeBits = 10
	seqBits  = 12

	maxNodeID = (1 << nodeBits) - 1 // 1023
	seqMask   = (1 << seqBits) - 1  // 4095

	timestampShift = nodeBits + seqBits
)

// Node generates 64-bit snowflake IDs: 41 bits of millisecond timestamp,
// 10 bits of node ID and a 12-bit per-millisecond sequence. IDs from a
// single node are strictly increasing; distinct node IDs keep concurrent
// processes collision-free without any coordination service.
type Node struct {
	mu     sync.Mutex
	nodeID int64
	lastTS int64
	seq    int64

	nowMs func() int64
}

// NewNode creates a generator for the given node ID (0-1023). Every
// process in the deployment must be configured with a distinct node ID.
func NewNode(nodeID int64) (*Node, error) {
	if nodeID < 0 || nodeID > maxNodeID {
		return nil, fmt.Errorf("snowflake node id must be in [0, %d], got %d", maxNodeID, nodeID)
	}
	return &Node{
		nodeID: nodeID,
		lastTS: -1,
		nowMs:  func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// Next returns the next unique ID. Safe for concurrent use.
//
// If the wall clock is observed behind the last issued timestamp the
// call blocks until it catches up; handing out an ID against a rolled
// back clock could duplicate one issued earlier.
func (n *Node) Next() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	ts := n.nowMs()
	if ts < n.lastTS {
		ts = n.waitUntil(n.lastTS)
	}

	if ts == n.lastTS {
		n.seq = (n.seq + 1) & seqMask
		if n.seq == 0 {
			// Sequence exhausted for this millisecond.
			ts = n.waitUntil(n.lastTS + 1)
		}
	} else {
		n.seq = 0
	}

	n.lastTS = ts
	return ((ts - Epoch) << timestampShift) | (n.nodeID << seqBits) | n.seq
}

func (n *Node) waitUntil(target int64) int64 {
	ts := n.nowMs()
	for ts < target {
		time.Sleep(time.Millisecond)
		ts = n.nowMs()
	}
	return ts
}

var (
	defaultMu   sync.Mutex
	defaultNode *Node
)

// SetDefault installs the process-wide generator used by Generate.
// Called once at startup with the node constructed from configuration.
func SetDefault(n *Node) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultNode = n
}

// Generate returns an ID from the process-wide generator. Model hooks
// use this to assign primary keys; if SetDefault was never called a
// node-0 generator is created, which is only acceptable for tests and
// single-instance deployments.
func Generate() int64 {
	defaultMu.Lock()
	if defaultNode == nil {
		defaultNode, _ = NewNode(0)
	}
	n := defaultNode
	defaultMu.Unlock()
	return n.Next()
}
