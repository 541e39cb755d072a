package id

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// Node ids per binary. Conversations and webhook logs are minted by both the
// server and the worker, so the two must never share a node.
const (
	NodeServer  int64 = 1
	NodeWorker  int64 = 2
	NodeInspect int64 = 3
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init initializes the Snowflake node with the given node ID.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
	})
	if err != nil {
		return fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return nil
}

// New returns a time-ordered int64 id. Init must have been called.
func New() int64 {
	return node.Generate().Int64()
}
