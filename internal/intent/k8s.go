package intent

import (
	"context"
	"fmt"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"go.uber.org/zap"
)

// KubernetesSource lists intents from service annotations across all
// namespaces, grounded on the reference implementation's
// get_services_with_dns_annotations.
type KubernetesSource struct {
	Client kubernetes.Interface
	Logger *zap.SugaredLogger
}

var _ Source = (*KubernetesSource)(nil)

// ListIntents enumerates every service in the cluster and builds an
// Intent for each one that opted in. A single service with a malformed
// epictetus.io/ttl annotation is dropped with a warning; it does not fail
// the listing for every other service.
func (s *KubernetesSource) ListIntents(ctx context.Context) ([]Intent, error) {
	services, err := s.Client.CoreV1().Services(metav1.NamespaceAll).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing services: %w", err)
	}

	intents := make([]Intent, 0, len(services.Items))
	for _, svc := range services.Items {
		if len(svc.Annotations) == 0 {
			continue
		}
		in, ok, errTTL := FromAnnotations(svc.Namespace, svc.Name, svc.Annotations)
		if errTTL != nil {
			s.logger().Warnw("dropping intent with malformed ttl annotation",
				"service", svc.Namespace+"/"+svc.Name, "error", errTTL)
			continue
		}
		if !ok {
			continue
		}
		intents = append(intents, in)
	}
	return intents, nil
}

func (s *KubernetesSource) logger() *zap.SugaredLogger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop().Sugar()
}
