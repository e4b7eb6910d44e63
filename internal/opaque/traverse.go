package opaque

import "encoding/json"

// identifierField is the one field name that always holds an
// identifier, whatever the surrounding shape.
const identifierField = "identifier"

// DefaultRelations is the central allow-list of relation keys whose
// values are traversed for nested identifiers. Keys not listed here are
// passed through untouched, so a new relation kind must be added here
// or its nested identifiers leak un-encoded.
func DefaultRelations() []string {
	return []string{
		"owner",
		"author",
		"item",
		"items",
		"review",
		"reviews",
		"tag",
		"tags",
		"results",
	}
}

// EncodePayload walks an untyped payload tree depth-first and replaces
// every identifier with its opaque form. Sequences keep order and
// length, unrecognized keys and scalars pass through unchanged, nil
// short-circuits to nil. The input is never mutated.
func (c *Codec) EncodePayload(v any) any {
	switch node := v.(type) {
	case []any:
		out := make([]any, len(node))
		for i, elem := range node {
			out[i] = c.EncodePayload(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(node))
		for key, val := range node {
			switch {
			case key == identifierField:
				out[key] = c.encodeValue(val)
			case c.isRelation(key):
				out[key] = c.EncodePayload(val)
			default:
				out[key] = val
			}
		}
		return out
	default:
		return v
	}
}

// DecodePayload is the inverse walk: every identifier field holding an
// opaque string is decoded back to its internal form. The first
// malformed identifier aborts the walk with ErrBadIdentifier; a
// successfully decoded identifier may still be stale or forged and must
// be confirmed by a store lookup.
func (c *Codec) DecodePayload(v any) (any, error) {
	switch node := v.(type) {
	case []any:
		out := make([]any, len(node))
		for i, elem := range node {
			decoded, err := c.DecodePayload(elem)
			if err != nil {
				return nil, err
			}
			out[i] = decoded
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(node))
		for key, val := range node {
			switch {
			case key == identifierField:
				decoded, err := c.decodeValue(val)
				if err != nil {
					return nil, err
				}
				out[key] = decoded
			case c.isRelation(key):
				decoded, err := c.DecodePayload(val)
				if err != nil {
					return nil, err
				}
				out[key] = decoded
			default:
				out[key] = val
			}
		}
		return out, nil
	default:
		return v, nil
	}
}

func (c *Codec) isRelation(key string) bool {
	_, ok := c.relations[key]
	return ok
}

// encodeValue encodes identifier-like values and leaves everything else
// alone, so EncodePayload stays total and idempotent on fields that do
// not carry an internal identifier.
func (c *Codec) encodeValue(val any) any {
	switch id := val.(type) {
	case int64:
		return c.EncodeID(id)
	case int:
		return c.EncodeID(int64(id))
	case float64:
		return c.EncodeID(int64(id))
	case json.Number:
		n, err := id.Int64()
		if err != nil {
			return val
		}
		return c.EncodeID(n)
	default:
		return val
	}
}

func (c *Codec) decodeValue(val any) (any, error) {
	s, ok := val.(string)
	if !ok {
		return val, nil
	}
	id, err := c.DecodeID(s)
	if err != nil {
		return nil, err
	}
	return id, nil
}
