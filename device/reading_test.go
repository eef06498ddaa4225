package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultOf(t *testing.T) {
	assert.Equal(t, Value(3.5), resultOf(Some(3.5)))
	assert.Equal(t, NotAvailable(), resultOf(Reading{}))
}

func TestResultString(t *testing.T) {
	tests := []struct {
		result Result
		want   string
	}{
		{Value(1.25), "1.25"},
		{NotAvailable(), "not-available"},
		{DeviceGone(), "device-gone"},
		{TimedOut(), "timed-out"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.result.String())
	}
	assert.Equal(t, "n/a", Reading{}.String())
	assert.Equal(t, "status(0)", Status(0).String())
}
