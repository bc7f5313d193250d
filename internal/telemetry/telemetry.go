/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelglobal "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const meterName = "github.com/HamedShams/jira-pulse"

// Init installs a global MeterProvider backed by a Prometheus registry and
// returns the handler that serves it.
func Init(ctx context.Context, serviceName string) (http.Handler, error) {
	if serviceName == "" {
		serviceName = "jira-pulse"
	}
	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otelglobal.SetMeterProvider(provider)
	if err := InitMetrics(); err != nil {
		return nil, err
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}), nil
}

func Meter() metric.Meter {
	return otelglobal.Meter(meterName)
}

var (
	AttrIntent  = attribute.Key("intent")
	AttrOutcome = attribute.Key("outcome")
	AttrBackend = attribute.Key("backend")
	AttrModel   = attribute.Key("model")
	AttrClass   = attribute.Key("status_class")
	AttrOp      = attribute.Key("operation")
)
