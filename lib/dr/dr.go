// Package dr implements the DRReplicator collaborator (spec.md §6):
// cross-datacenter replication of committed writes. It is grounded on
// lib/store/dstore.storeImpl's dragonboat propose loop — the same
// SyncPropose-with-retry pattern, but targeting a raft shard that
// represents a remote data center instead of the local cluster, and
// carrying the fixed-layout binary record internal.Command's
// Serialize/Deserialize pair is modeled on.
package dr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Kaychang/ignitecache/lib/cacheentry"
	"github.com/Kaychang/ignitecache/lib/version"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

var log = logger.GetLogger("dr")

const retries = 5

// proposer is the subset of *dragonboat.NodeHost Replicator needs, declared
// narrowly so tests can supply a fake without standing up a real raft
// cluster.
type proposer interface {
	SyncPropose(ctx context.Context, session *client.Session, cmd []byte) (sm.Result, error)
}

// Replicator sends committed writes to a remote data center's raft shard.
type Replicator struct {
	nh      proposer
	shardID uint64
	session *client.Session
	timeout time.Duration
}

// NewReplicator creates a Replicator that proposes to shardID on nh, the
// raft shard a remote data center's state machine is listening on.
func NewReplicator(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) *Replicator {
	return &Replicator{nh: nh, shardID: shardID, session: nh.GetNoOPSession(shardID), timeout: timeout}
}

// Replicate implements cacheentry.DRReplicator: it serializes the write and
// proposes it to the remote shard, retrying on a busy raft group exactly
// like storeImpl.write.
func (r *Replicator) Replicate(key string, val []byte, ttl, expireTime uint64, conflictVer version.Version, drType cacheentry.DRType, topVer uint64) error {
	rec := Record{
		Type:            drType,
		Key:             key,
		Value:           val,
		TTL:             ttl,
		ExpireTime:      expireTime,
		ConflictVer:     conflictVer,
		TopologyVersion: topVer,
	}
	data := rec.Serialize()

	var lastErr error
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		_, err := r.nh.SyncPropose(ctx, r.session, data)
		cancel()

		if errors.Is(err, dragonboat.ErrSystemBusy) {
			log.Infof("Replicate: remote shard busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(r.timeout / 10)
			lastErr = err
			continue
		}
		return err
	}
	return fmt.Errorf("dr: replicate %q: %w", key, lastErr)
}
