// Package intent derives DNS intents from Kubernetes service annotations.
package intent

import (
	"context"
	"strconv"
)

// Annotation keys recognized on a Kubernetes service.
const (
	AnnotationEnabled  = "epictetus.io/dns-enabled"
	AnnotationHostname = "epictetus.io/hostname"
	AnnotationTTL      = "epictetus.io/ttl"
	AnnotationProxied  = "epictetus.io/proxied"

	DefaultTTL = 300
)

// Intent is a (hostname, ttl, proxied) declaration sourced from a single
// Kubernetes service's annotations.
type Intent struct {
	ServiceNamespace string
	ServiceName      string
	Hostname         string
	TTL              int
	Proxied          bool
	Enabled          bool
}

// Source produces the current set of DNS intents. Implementations read
// from Kubernetes services; the fake in this package's fake subpackage
// reads from an in-memory list for tests.
type Source interface {
	ListIntents(ctx context.Context) ([]Intent, error)
}

// FromAnnotations builds an Intent from a service's namespace, name, and
// annotation map. It returns ok=false when the service did not opt in
// (dns-enabled is anything other than "true") or declared no hostname.
// A malformed epictetus.io/ttl value is reported via errTTL so the caller
// can fail just this one service's Intent rather than the whole listing.
func FromAnnotations(namespace, name string, annotations map[string]string) (intent Intent, ok bool, errTTL error) {
	if annotations[AnnotationEnabled] != "true" {
		return Intent{}, false, nil
	}
	hostname := annotations[AnnotationHostname]
	if hostname == "" {
		return Intent{}, false, nil
	}

	ttl := DefaultTTL
	if raw, present := annotations[AnnotationTTL]; present && raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return Intent{}, true, err
		}
		ttl = parsed
	}

	proxied := false
	if raw, present := annotations[AnnotationProxied]; present {
		proxied = raw == "true"
	}

	return Intent{
		ServiceNamespace: namespace,
		ServiceName:      name,
		Hostname:         hostname,
		TTL:              ttl,
		Proxied:          proxied,
		Enabled:          true,
	}, true, nil
}
