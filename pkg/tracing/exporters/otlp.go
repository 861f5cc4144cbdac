package exporters

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"

	defaultGRPCEndpoint = "localhost:4317"
	defaultHTTPEndpoint = "localhost:4318"
	defaultTimeout      = 10 * time.Second
)

// OTLPConfig holds the collector settings
type OTLPConfig struct {
	// Endpoint is host:port; empty picks the collector default for the protocol
	Endpoint string
	Protocol string
	Insecure bool
	Headers  map[string]string
	Timeout  time.Duration
}

func (c OTLPConfig) withDefaults() OTLPConfig {
	if c.Protocol == "" {
		c.Protocol = ProtocolGRPC
	}
	if c.Endpoint == "" {
		c.Endpoint = defaultGRPCEndpoint
		if c.Protocol == ProtocolHTTP {
			c.Endpoint = defaultHTTPEndpoint
		}
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

// NewOTLPExporter creates a trace exporter for a grpc or http collector
func NewOTLPExporter(ctx context.Context, config OTLPConfig) (*otlptrace.Exporter, error) {
	config = config.withDefaults()

	var client otlptrace.Client
	switch config.Protocol {
	case ProtocolGRPC:
		client = grpcClient(config)
	case ProtocolHTTP:
		client = httpClient(config)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", config.Protocol)
	}
	return otlptrace.New(ctx, client)
}

func grpcClient(config OTLPConfig) otlptrace.Client {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(config.Endpoint),
		otlptracegrpc.WithTimeout(config.Timeout),
		otlptracegrpc.WithHeaders(config.Headers),
	}
	if config.Insecure {
		opts = append(opts,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		)
	}
	return otlptracegrpc.NewClient(opts...)
}

func httpClient(config OTLPConfig) otlptrace.Client {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.Endpoint),
		otlptracehttp.WithTimeout(config.Timeout),
		otlptracehttp.WithHeaders(config.Headers),
	}
	if config.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.NewClient(opts...)
}
