package datasource

import "errors"

// ErrUpstreamUnavailable marks network-level failures and non-200 responses
// from the market data provider. Retry policy belongs to the caller.
var ErrUpstreamUnavailable = errors.New("upstream unavailable")

// ErrUpstreamSchemaError marks responses that arrived but did not have the
// expected shape, so a provider-side format change fails loudly at the
// adapter boundary instead of deep in the pipeline.
var ErrUpstreamSchemaError = errors.New("upstream schema error")
