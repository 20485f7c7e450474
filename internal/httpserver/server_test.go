package httpserver_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magicorntech/epictetus/internal/dnsprovider"
	dnsfake "github.com/magicorntech/epictetus/internal/dnsprovider/fake"
	eventsfake "github.com/magicorntech/epictetus/internal/events/fake"
	"github.com/magicorntech/epictetus/internal/httpserver"
	intentfake "github.com/magicorntech/epictetus/internal/intent/fake"
	"github.com/magicorntech/epictetus/internal/node"
	nodefake "github.com/magicorntech/epictetus/internal/nodesource/fake"
	"github.com/magicorntech/epictetus/internal/reconciler"
)

func TestHandleLivenessAlwaysOK(t *testing.T) {
	s := &httpserver.Server{Reconciler: newReconciler(t)}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleReadinessReflectsHealthSnapshot(t *testing.T) {
	cases := []struct {
		name         string
		recordDNS    bool
		recordNode   bool
		expectedCode int
	}{
		{"both substrates healthy", true, true, http.StatusOK},
		{"only dns healthy", true, false, http.StatusServiceUnavailable},
		{"only node source healthy", false, true, http.StatusServiceUnavailable},
		{"neither healthy", false, false, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newReconciler(t)
			r.RecordDNSHealth(dnsprovider.HealthStatus{Healthy: tc.recordDNS})
			r.RecordNodeSourceHealth(tc.recordNode, "")

			s := &httpserver.Server{Reconciler: r}
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			require.Equal(t, tc.expectedCode, rec.Code)
		})
	}
}

func newReconciler(t *testing.T) *reconciler.Reconciler {
	t.Helper()
	nodes := nodefake.NewSource(node.DefaultDeletionTaintSet)
	dns := dnsfake.NewProvider(map[string]string{"example.com": "Z1"})
	return reconciler.New(nodes, dns, &intentfake.Source{}, eventsfake.NewRecorder(), nil, node.DefaultDeletionTaintSet)
}
