package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dnsfake "github.com/magicorntech/epictetus/internal/dnsprovider/fake"
	eventsfake "github.com/magicorntech/epictetus/internal/events/fake"
	intentfake "github.com/magicorntech/epictetus/internal/intent/fake"
	"github.com/magicorntech/epictetus/internal/node"
	"github.com/magicorntech/epictetus/internal/nodesource"
	nodefake "github.com/magicorntech/epictetus/internal/nodesource/fake"
	"github.com/magicorntech/epictetus/internal/reconciler"
)

func TestRunHealthCheckRecordsHealthyWhenBothSubstratesReachable(t *testing.T) {
	ctx := context.Background()
	nodes := nodefake.NewSource(node.DefaultDeletionTaintSet)
	dns := dnsfake.NewProvider(map[string]string{"example.com": "Z1"})
	r := reconciler.New(nodes, dns, &intentfake.Source{}, eventsfake.NewRecorder(), nil, node.DefaultDeletionTaintSet)
	s := &Scheduler{Reconciler: r, Nodes: nodes}

	s.runHealthCheck(ctx)

	status := r.HealthSnapshot()
	require.True(t, status.DNSProvider.Healthy)
	require.True(t, status.NodeSource.Healthy)
	assert.Equal(t, reconciler.Healthy, status.Overall)
}

func TestRunHealthCheckRecordsUnhealthyNodeSource(t *testing.T) {
	ctx := context.Background()
	nodes := &erroringNodeSource{err: errors.New("api unreachable")}
	dns := dnsfake.NewProvider(map[string]string{"example.com": "Z1"})
	r := reconciler.New(nodes, dns, &intentfake.Source{}, eventsfake.NewRecorder(), nil, node.DefaultDeletionTaintSet)
	s := &Scheduler{Reconciler: r, Nodes: nodes}

	s.runHealthCheck(ctx)

	status := r.HealthSnapshot()
	assert.False(t, status.NodeSource.Healthy)
	assert.Equal(t, "api unreachable", status.NodeSource.Detail)
	assert.True(t, status.DNSProvider.Healthy)
	assert.Equal(t, reconciler.Degraded, status.Overall)
}

func TestRunHealthCheckRecordsUnhealthyDNSProvider(t *testing.T) {
	ctx := context.Background()
	nodes := nodefake.NewSource(node.DefaultDeletionTaintSet)
	dns := dnsfake.NewProvider(map[string]string{"example.com": "Z1"})
	dns.FailOn["HealthCheck"] = errors.New("cloudflare unreachable")
	r := reconciler.New(nodes, dns, &intentfake.Source{}, eventsfake.NewRecorder(), nil, node.DefaultDeletionTaintSet)
	s := &Scheduler{Reconciler: r, Nodes: nodes}

	s.runHealthCheck(ctx)

	status := r.HealthSnapshot()
	assert.False(t, status.DNSProvider.Healthy)
	assert.Equal(t, reconciler.Degraded, status.Overall)
}

type erroringNodeSource struct{ err error }

var _ nodesource.Source = (*erroringNodeSource)(nil)

func (e *erroringNodeSource) ListNodes(context.Context) ([]node.Node, error) { return nil, e.err }
func (e *erroringNodeSource) WatchNodes(ctx context.Context, _ nodesource.EventHandler) {
	<-ctx.Done()
}
