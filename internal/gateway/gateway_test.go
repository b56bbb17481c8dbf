package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistryRejectsMissingDefault(t *testing.T) {
	_, err := NewRegistry("paystack", NewFlutterwave("sk", "hash", time.Second))
	assert.Error(t, err)
}

func TestRegistryGetUnknownGateway(t *testing.T) {
	r, err := NewRegistry("flutterwave", NewFlutterwave("sk", "hash", time.Second))
	require.NoError(t, err)

	_, err = r.Get("stripe")
	assert.ErrorIs(t, err, ErrUnknownGateway)
}

func TestRegistryGetAndDefault(t *testing.T) {
	flw := NewFlutterwave("sk", "hash", time.Second)
	ps := NewPaystack("sk", time.Second)
	r, err := NewRegistry("paystack", flw, ps)
	require.NoError(t, err)

	got, err := r.Get("flutterwave")
	require.NoError(t, err)
	assert.Equal(t, "flutterwave", got.Name())
	assert.Equal(t, "paystack", r.Default().Name())
}
