package observability

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// instruments creates OTel instruments on one meter and keeps every
// creation error, so a metrics struct is built with a single check.
type instruments struct {
	meter metric.Meter
	errs  []error
}

func (in *instruments) count(name, desc, unit string) metric.Int64Counter {
	c, err := in.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	in.check(name, err)

	return c
}

// seconds creates a duration histogram over durationBucketBoundaries.
func (in *instruments) seconds(name, desc string) metric.Float64Histogram {
	h, err := in.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	in.check(name, err)

	return h
}

func (in *instruments) gauge(name, desc, unit string) metric.Int64UpDownCounter {
	g, err := in.meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	in.check(name, err)

	return g
}

func (in *instruments) check(name string, err error) {
	if err != nil {
		in.errs = append(in.errs, fmt.Errorf("instrument %s: %w", name, err))
	}
}

func (in *instruments) err() error {
	return errors.Join(in.errs...)
}
