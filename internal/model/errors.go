package model

import "errors"

var (
	// ErrProbeTimeout marks a probe run that produced no sample in time.
	// The slot keeps its previous value.
	ErrProbeTimeout = errors.New("probe timeout")

	// ErrCounterAnomaly marks a counter read that could not yield a rate
	// (reset, wrap, or a non-advancing clock).
	ErrCounterAnomaly = errors.New("counter anomaly")

	// ErrNoSample marks a probe that does not have enough data yet.
	ErrNoSample = errors.New("no sample yet")

	// ErrConfiguration is fatal: it stops startup, or the pipeline when a
	// record cannot be built correctly.
	ErrConfiguration = errors.New("configuration error")

	// ErrTransmission marks a record dropped after all send attempts failed.
	ErrTransmission = errors.New("transmission failed")
)
