package node

import "time"

// Identity describes the node as it reports itself over RPC.
type Identity struct {
	// ID is the node's P2P identifier.
	ID string
	// Moniker is the operator-chosen node name.
	Moniker string
	// Network is the chain identifier the node is serving.
	Network string
	// Version is the consensus-engine version of the node binary.
	Version string
}

// Clone returns a deep copy of the identity.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}

	cloned := *i

	return &cloned
}

// Status represents the node's sync state at a specific point in time.
type Status struct {
	// Node identifies which node produced the status.
	Node *Identity
	// LatestHeight is the last block height the node has applied.
	LatestHeight int64
	// LatestBlockTime is the timestamp of the latest applied block.
	LatestBlockTime time.Time
	// CatchingUp reports whether the node is still syncing towards the chain tip.
	CatchingUp bool
	// AppVersion is the application version reported by the ABCI layer,
	// empty when the probe could not reach it.
	AppVersion string
	// Peers is the number of connected peers, -1 when unknown.
	Peers int
}

// Clone returns a copy of the status to avoid leaking internal references.
func (s *Status) Clone() *Status {
	if s == nil {
		return nil
	}

	cloned := *s
	cloned.Node = s.Node.Clone()

	return &cloned
}
