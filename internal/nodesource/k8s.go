package nodesource

import (
	"context"
	"time"

	"github.com/avast/retry-go"
	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/kubernetes"

	"github.com/magicorntech/epictetus/internal/node"
)

// watchTimeoutSeconds bounds a single watch stream, matching the
// reference implementation's w.stream(..., timeout_seconds=60).
const watchTimeoutSeconds = 60

// reconnectBackoff is how long WatchNodes sleeps after a stream error
// before opening a new watch.
const reconnectBackoff = 5 * time.Second

// KubernetesSource is the production Source, backed by a client-go
// clientset. It performs plain list+watch against CoreV1().Nodes()
// rather than an informer, mirroring the reference implementation's own
// watch-thread design (transport is an implementation detail the spec
// deliberately keeps narrow).
type KubernetesSource struct {
	Client         kubernetes.Interface
	DeletionTaints node.DeletionTaintSet
	Retries        uint
	RetryDelay     time.Duration
	Logger         *zap.SugaredLogger
}

var _ Source = (*KubernetesSource)(nil)

func (s *KubernetesSource) logger() *zap.SugaredLogger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop().Sugar()
}

func (s *KubernetesSource) retries() uint {
	if s.Retries == 0 {
		return 3
	}
	return s.Retries
}

func (s *KubernetesSource) retryDelay() time.Duration {
	if s.RetryDelay == 0 {
		return 2 * time.Second
	}
	return s.RetryDelay
}

// ListNodes performs a one-shot full list, retried on failure with a
// fixed wait: Retries attempts and RetryDelay between them, or three
// attempts and 2 seconds when those are unset.
func (s *KubernetesSource) ListNodes(ctx context.Context) ([]node.Node, error) {
	var nodes []node.Node
	err := retry.Do(
		func() error {
			list, err := s.Client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
			if err != nil {
				return err
			}
			nodes = make([]node.Node, 0, len(list.Items))
			for i := range list.Items {
				nodes = append(nodes, extractNode(&list.Items[i]))
			}
			return nil
		},
		retry.Attempts(s.retries()),
		retry.Delay(s.retryDelay()),
		retry.DelayType(retry.FixedDelay),
	)
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// WatchNodes begins a long-lived event stream. It reconnects internally
// on transient errors with a 5-second back-off, indefinitely, until ctx
// is cancelled. Only events relevant to DNS convergence reach onEvent —
// see shouldTriggerCallback.
func (s *KubernetesSource) WatchNodes(ctx context.Context, onEvent EventHandler) {
	cache := map[string]node.Node{}

	for {
		if ctx.Err() != nil {
			return
		}
		s.logger().Info("starting node watch stream")
		w, err := s.Client.CoreV1().Nodes().Watch(ctx, metav1.ListOptions{
			TimeoutSeconds: ptrInt64(watchTimeoutSeconds),
		})
		if err != nil {
			s.logger().Errorw("failed to open node watch", "error", err)
			if !sleepOrDone(ctx, reconnectBackoff) {
				return
			}
			continue
		}

		s.consume(ctx, w, cache, onEvent)
		w.Stop()

		if ctx.Err() != nil {
			return
		}
		if !sleepOrDone(ctx, reconnectBackoff) {
			return
		}
	}
}

func (s *KubernetesSource) consume(ctx context.Context, w watch.Interface, cache map[string]node.Node, onEvent EventHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, open := <-w.ResultChan():
			if !open {
				return
			}
			n, ok := ev.Object.(*corev1.Node)
			if !ok {
				continue
			}
			kind, recognized := mapEventType(ev.Type)
			if !recognized {
				continue
			}

			newNode := extractNode(n)
			oldNode, hadOld := cache[newNode.Name]
			if kind == Deleted {
				delete(cache, newNode.Name)
			} else {
				cache[newNode.Name] = newNode
			}

			if !shouldTriggerCallback(kind, oldNode, hadOld, newNode, s.DeletionTaints) {
				continue
			}
			func() {
				defer func() {
					if r := recover(); r != nil {
						s.logger().Errorw("recovered panic in node event callback", "panic", r, "node", newNode.Name)
					}
				}()
				onEvent(kind, newNode)
			}()
		}
	}
}

func mapEventType(t watch.EventType) (EventKind, bool) {
	switch t {
	case watch.Added:
		return Added, true
	case watch.Modified:
		return Modified, true
	case watch.Deleted:
		return Deleted, true
	default:
		return "", false
	}
}

// shouldTriggerCallback implements the watch-filtering contract: only
// transitions relevant to DNS convergence are propagated event-by-event.
func shouldTriggerCallback(kind EventKind, old node.Node, hadOld bool, next node.Node, set node.DeletionTaintSet) bool {
	switch kind {
	case Added:
		return next.Departing(set)
	case Modified:
		if !hadOld {
			return false
		}
		return !old.Departing(set) && next.Departing(set)
	case Deleted:
		return hadOld && old.Departing(set)
	default:
		return false
	}
}

// extractNode translates a corev1.Node into the domain's node.Node,
// applying the external-IP extraction contract. Deletion-taint and
// eligibility derivation happen later via node.Node's own methods.
func extractNode(n *corev1.Node) node.Node {
	var externalIP string
	for _, addr := range n.Status.Addresses {
		if addr.Type == corev1.NodeExternalIP {
			externalIP = addr.Address
			break
		}
	}
	if externalIP == "" {
		externalIP = n.Annotations[node.FlannelPublicIPAnnotation]
	}

	taints := make([]node.Taint, 0, len(n.Spec.Taints))
	for _, t := range n.Spec.Taints {
		taints = append(taints, node.Taint{Key: t.Key, Value: t.Value, Effect: string(t.Effect)})
	}

	ready := false
	for _, cond := range n.Status.Conditions {
		if cond.Type == corev1.NodeReady {
			ready = cond.Status == corev1.ConditionTrue
			break
		}
	}

	return node.Node{
		Name:              n.Name,
		ExternalIP:        externalIP,
		Taints:            taints,
		Labels:            n.Labels,
		Annotations:       n.Annotations,
		Ready:             ready,
		CreationTimestamp: n.CreationTimestamp.Time,
	}
}

func ptrInt64(v int64) *int64 { return &v }

// sleepOrDone sleeps for d or returns false early if ctx is cancelled.
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
