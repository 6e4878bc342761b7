package tracing

import (
	"go.opentelemetry.io/otel"

	"github.com/honeycombio/otel-config-go/otelconfig"
	log "github.com/sirupsen/logrus"
)

var GlobalTracer = otel.Tracer("authgate")

// HoneycombSetup uses the honeycomb distro to set up the OpenTelemetry
// SDK. When disabled, the global tracer stays a noop and spans cost
// nearly nothing.
func HoneycombSetup(enabled bool, serviceName string) (shutdown func(), err error) {
	if !enabled {
		log.Debugln("tracing disabled, otel sdk not configured")
		return func() {}, nil
	}

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(serviceName),
	)
	if err != nil {
		return nil, err
	}

	log.Infof("otel sdk configured, service name: %s", serviceName)
	return otelShutdown, nil
}
