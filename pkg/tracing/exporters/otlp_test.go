package exporters

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOTLPConfig_WithDefaults(t *testing.T) {
	tests := []struct {
		name     string
		config   OTLPConfig
		expected OTLPConfig
	}{
		{
			name:     "empty config uses grpc collector",
			config:   OTLPConfig{},
			expected: OTLPConfig{Protocol: ProtocolGRPC, Endpoint: defaultGRPCEndpoint, Timeout: defaultTimeout},
		},
		{
			name:     "http picks the http port",
			config:   OTLPConfig{Protocol: ProtocolHTTP},
			expected: OTLPConfig{Protocol: ProtocolHTTP, Endpoint: defaultHTTPEndpoint, Timeout: defaultTimeout},
		},
		{
			name:     "explicit values are kept",
			config:   OTLPConfig{Protocol: ProtocolHTTP, Endpoint: "collector:9999", Timeout: time.Second},
			expected: OTLPConfig{Protocol: ProtocolHTTP, Endpoint: "collector:9999", Timeout: time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.withDefaults())
		})
	}
}

func TestNewOTLPExporter_UnsupportedProtocol(t *testing.T) {
	_, err := NewOTLPExporter(context.Background(), OTLPConfig{Protocol: "udp"})
	assert.Error(t, err)
}
