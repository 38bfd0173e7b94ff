// Package lease implements the optional cross-replica leader election
// used when more than one sandboxcore process shares a single workspace
// provider quota. Each replica campaigns before calling client.Create,
// so at most one create call is ever in flight against the backend at a
// time, and resigns immediately afterwards so the next waiting replica
// can proceed; PublishWorkspace records the resulting workspace id for
// observability. A deployment with SANDBOX_LEASE_ENDPOINTS unset never
// touches this package and assumes sole ownership of its workspace.
package lease

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/concurrency"
)

const sessionTTLSeconds = 30

// Lease wraps an etcd-backed election; the elected process publishes the
// id of the workspace it created as the election's value.
type Lease struct {
	client    *clientv3.Client
	session   *concurrency.Session
	election  *concurrency.Election
	key       string
	isLeader  bool
}

// New connects to the given etcd endpoints and prepares an election
// scoped to key (typically a fixed name for this deployment's workspace
// pool, e.g. "/sandboxcore/<pool>").
func New(endpoints []string, key string) (*Lease, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("lease: connect: %w", err)
	}

	sess, err := concurrency.NewSession(cli, concurrency.WithTTL(sessionTTLSeconds))
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("lease: new session: %w", err)
	}

	return &Lease{
		client:   cli,
		session:  sess,
		election: concurrency.NewElection(sess, key),
		key:      key,
	}, nil
}

// Campaign blocks until this process wins the election or ctx is
// cancelled. value is published as this process's candidacy value; the
// winner later overwrites it with the workspace id via PublishWorkspace.
func (l *Lease) Campaign(ctx context.Context, value string) error {
	if err := l.election.Campaign(ctx, value); err != nil {
		return fmt.Errorf("lease: campaign: %w", err)
	}
	l.isLeader = true
	return nil
}

// IsLeader reports whether this process currently holds the election.
func (l *Lease) IsLeader() bool { return l.isLeader }

// PublishWorkspace records the created workspace id as the election's
// value; nothing in this module reads it back. Only the leader should
// call this, after client.Create succeeds.
func (l *Lease) PublishWorkspace(ctx context.Context, workspaceID string) error {
	if err := l.election.Proclaim(ctx, workspaceID); err != nil {
		return fmt.Errorf("lease: publish workspace: %w", err)
	}
	return nil
}

// Resign gives up leadership, allowing another process to campaign.
func (l *Lease) Resign(ctx context.Context) error {
	if !l.isLeader {
		return nil
	}
	if err := l.election.Resign(ctx); err != nil {
		return fmt.Errorf("lease: resign: %w", err)
	}
	l.isLeader = false
	return nil
}

// Close releases the etcd session and client connection.
func (l *Lease) Close() error {
	_ = l.session.Close()
	return l.client.Close()
}
