package model

// Payload is the untyped tree representing one request or response body
// while it crosses the boundary layer. Handlers bind JSON bodies into
// it and the opaque codec walks it, so business code can assemble
// response shapes ad hoc without a fixed schema.
type Payload = map[string]any
