// Package node models a cluster worker node and its eligibility to be
// advertised in DNS, independent of the transport used to observe it.
package node

import "time"

// FlannelPublicIPAnnotation is consulted for a node's external IP when
// status.addresses carries no ExternalIP entry.
const FlannelPublicIPAnnotation = "flannel.alpha.coreos.com/public-ip"

// Taint is a (key, value, effect) triple taken from a node's spec.taints.
type Taint struct {
	Key    string
	Value  string
	Effect string
}

// Node is the subset of a Kubernetes node this system reasons about.
type Node struct {
	Name              string
	ExternalIP        string
	Taints            []Taint
	Labels            map[string]string
	Annotations       map[string]string
	Ready             bool
	CreationTimestamp time.Time
}

// DeletionTaints returns the subset of n's taints whose keys are in the
// configured set, or nil unless every key in the set is present (full
// match required — a proper subset never counts).
func (n Node) DeletionTaints(set DeletionTaintSet) []Taint {
	if len(set) == 0 {
		return nil
	}
	present := make(map[string]Taint, len(set))
	for _, t := range n.Taints {
		if set.Has(t.Key) {
			present[t.Key] = t
		}
	}
	if len(present) < len(set) {
		return nil
	}
	out := make([]Taint, 0, len(present))
	for _, k := range set {
		out = append(out, present[k])
	}
	return out
}

// Departing reports whether n carries every taint key in set.
func (n Node) Departing(set DeletionTaintSet) bool {
	return len(n.DeletionTaints(set)) > 0
}

// Advertisable reports whether n's external IP should currently appear in
// DNS: it has a non-empty external IP and is not Departing. Readiness is
// recorded for observability only and never excludes a node here.
func (n Node) Advertisable(set DeletionTaintSet) bool {
	return n.ExternalIP != "" && !n.Departing(set)
}

// DeletionTaintSet is the configured set of taint keys that, together,
// signal a node is departing the cluster.
type DeletionTaintSet []string

// DefaultDeletionTaintSet matches the taints applied by the cluster
// autoscaler shortly before it removes a node.
var DefaultDeletionTaintSet = DeletionTaintSet{
	"DeletionCandidateOfClusterAutoscaler",
	"ToBeDeletedByClusterAutoscaler",
}

// Has reports whether key is a member of the set.
func (s DeletionTaintSet) Has(key string) bool {
	for _, k := range s {
		if k == key {
			return true
		}
	}
	return false
}
