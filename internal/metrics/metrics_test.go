package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBooking(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewBooking(reg)
	require.NoError(t, err)

	m.Requests.WithLabelValues("pending").Inc()
	m.Requests.WithLabelValues("pending").Inc()
	m.Transitions.WithLabelValues("pending", "confirmed").Inc()
	m.HeldSlots.Set(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("pending")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("pending", "confirmed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.HeldSlots))

	t.Run("Registering twice fails", func(t *testing.T) {
		_, err := NewBooking(reg)
		assert.Error(t, err)
	})
}
