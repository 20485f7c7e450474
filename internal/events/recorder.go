package events

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	typedcorev1 "k8s.io/client-go/kubernetes/typed/core/v1"
	"k8s.io/client-go/tools/record"
)

// NewKubernetesRecorder builds a Recorder backed by client-go's
// EventBroadcaster, the same machinery every in-tree controller uses to
// emit `kubectl describe` events.
func NewKubernetesRecorder(client kubernetes.Interface, component string) Recorder {
	broadcaster := record.NewBroadcaster()
	broadcaster.StartRecordingToSink(&typedcorev1.EventSinkImpl{Interface: client.CoreV1().Events(corev1.NamespaceAll)})
	return &kubernetesRecorder{
		broadcaster: broadcaster,
		recorder:    broadcaster.NewRecorder(scheme.Scheme, corev1.EventSource{Component: component}),
	}
}

type kubernetesRecorder struct {
	broadcaster record.EventBroadcaster
	recorder    record.EventRecorder
}

var _ Recorder = (*kubernetesRecorder)(nil)

func (k *kubernetesRecorder) Publish(evt Event) {
	if evt.RateLimiter != nil && !evt.RateLimiter.TryAccept() {
		return
	}
	ref := &corev1.ObjectReference{
		Kind:      evt.InvolvedObject.Kind,
		Namespace: evt.InvolvedObject.Namespace,
		Name:      evt.InvolvedObject.Name,
	}
	k.recorder.Event(ref, evt.Type, evt.Reason, evt.Message)
}
