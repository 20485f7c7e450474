package intent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magicorntech/epictetus/internal/intent"
)

func TestFromAnnotationsNotOptedIn(t *testing.T) {
	cases := map[string]map[string]string{
		"missing enabled annotation": {
			intent.AnnotationHostname: "foo.example.com",
		},
		"enabled set to false": {
			intent.AnnotationEnabled:  "false",
			intent.AnnotationHostname: "foo.example.com",
		},
		"enabled set to garbage": {
			intent.AnnotationEnabled:  "yes",
			intent.AnnotationHostname: "foo.example.com",
		},
		"enabled but no hostname": {
			intent.AnnotationEnabled: "true",
		},
		"enabled with empty hostname": {
			intent.AnnotationEnabled:  "true",
			intent.AnnotationHostname: "",
		},
	}

	for name, annotations := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok, errTTL := intent.FromAnnotations("default", "svc", annotations)
			assert.False(t, ok)
			assert.NoError(t, errTTL)
		})
	}
}

func TestFromAnnotationsMalformedTTL(t *testing.T) {
	annotations := map[string]string{
		intent.AnnotationEnabled:  "true",
		intent.AnnotationHostname: "foo.example.com",
		intent.AnnotationTTL:      "not-a-number",
	}

	_, ok, errTTL := intent.FromAnnotations("default", "svc", annotations)
	assert.True(t, ok)
	assert.Error(t, errTTL)
}

func TestFromAnnotationsDefaultsTTLAndProxied(t *testing.T) {
	annotations := map[string]string{
		intent.AnnotationEnabled:  "true",
		intent.AnnotationHostname: "foo.example.com",
	}

	in, ok, errTTL := intent.FromAnnotations("default", "svc", annotations)
	require.True(t, ok)
	require.NoError(t, errTTL)
	assert.Equal(t, intent.DefaultTTL, in.TTL)
	assert.False(t, in.Proxied)
	assert.True(t, in.Enabled)
	assert.Equal(t, "default", in.ServiceNamespace)
	assert.Equal(t, "svc", in.ServiceName)
	assert.Equal(t, "foo.example.com", in.Hostname)
}

func TestFromAnnotationsExplicitTTLAndProxied(t *testing.T) {
	annotations := map[string]string{
		intent.AnnotationEnabled:  "true",
		intent.AnnotationHostname: "foo.example.com",
		intent.AnnotationTTL:      "120",
		intent.AnnotationProxied:  "true",
	}

	in, ok, errTTL := intent.FromAnnotations("default", "svc", annotations)
	require.True(t, ok)
	require.NoError(t, errTTL)
	assert.Equal(t, 120, in.TTL)
	assert.True(t, in.Proxied)
}

func TestFromAnnotationsProxiedRejectsNonTrueValues(t *testing.T) {
	annotations := map[string]string{
		intent.AnnotationEnabled:  "true",
		intent.AnnotationHostname: "foo.example.com",
		intent.AnnotationProxied:  "TRUE",
	}

	in, ok, errTTL := intent.FromAnnotations("default", "svc", annotations)
	require.True(t, ok)
	require.NoError(t, errTTL)
	assert.False(t, in.Proxied)
}
