package opaque

import (
	"errors"
	"reflect"
	"testing"
)

func TestEncodePayloadNestedIdentifiers(t *testing.T) {
	codec := newTestCodec(t)

	payload := map[string]any{
		"identifier": int64(42),
		"name":       "widget",
		"owner": map[string]any{
			"identifier": int64(7),
			"name":       "alice",
		},
	}

	encoded, ok := codec.EncodePayload(payload).(map[string]any)
	if !ok {
		t.Fatal("encoded payload is not a map")
	}

	if encoded["identifier"] != codec.EncodeID(42) {
		t.Fatalf("identifier = %v, want opaque form of 42", encoded["identifier"])
	}
	if encoded["name"] != "widget" {
		t.Fatalf("name = %v, want untouched scalar", encoded["name"])
	}
	owner, ok := encoded["owner"].(map[string]any)
	if !ok {
		t.Fatal("owner relation not traversed")
	}
	if owner["identifier"] != codec.EncodeID(7) {
		t.Fatalf("owner.identifier = %v, want opaque form of 7", owner["identifier"])
	}
}

func TestEncodePayloadListsKeepOrderAndLength(t *testing.T) {
	codec := newTestCodec(t)

	payload := map[string]any{
		"reviews": []any{
			map[string]any{"identifier": int64(1), "rating": 5},
			map[string]any{"identifier": int64(2), "rating": 3},
			map[string]any{"identifier": int64(3), "rating": 1},
		},
	}

	encoded := codec.EncodePayload(payload).(map[string]any)
	reviews := encoded["reviews"].([]any)
	if len(reviews) != 3 {
		t.Fatalf("len(reviews) = %d, want 3", len(reviews))
	}
	for i, want := range []int64{1, 2, 3} {
		entry := reviews[i].(map[string]any)
		if entry["identifier"] != codec.EncodeID(want) {
			t.Fatalf("reviews[%d].identifier = %v, want opaque form of %d", i, entry["identifier"], want)
		}
		if entry["rating"] == nil {
			t.Fatalf("reviews[%d].rating dropped", i)
		}
	}
}

func TestEncodePayloadUnlistedKeysPassThrough(t *testing.T) {
	codec := newTestCodec(t)

	// "metadata" is not on the relation allow-list: its contents must
	// come through untouched, identifier field included.
	payload := map[string]any{
		"metadata": map[string]any{"identifier": int64(42)},
	}

	encoded := codec.EncodePayload(payload).(map[string]any)
	meta := encoded["metadata"].(map[string]any)
	if meta["identifier"] != int64(42) {
		t.Fatalf("metadata.identifier = %v, want raw 42", meta["identifier"])
	}
}

func TestEncodePayloadScalarsAndNil(t *testing.T) {
	codec := newTestCodec(t)

	if got := codec.EncodePayload(nil); got != nil {
		t.Fatalf("EncodePayload(nil) = %v, want nil", got)
	}
	if got := codec.EncodePayload("hello"); got != "hello" {
		t.Fatalf("EncodePayload(scalar) = %v, want passthrough", got)
	}

	// non-numeric identifier values are left alone
	encoded := codec.EncodePayload(map[string]any{"identifier": true}).(map[string]any)
	if encoded["identifier"] != true {
		t.Fatalf("non-numeric identifier = %v, want passthrough", encoded["identifier"])
	}
}

func TestEncodePayloadDoesNotMutateInput(t *testing.T) {
	codec := newTestCodec(t)

	payload := map[string]any{
		"identifier": int64(42),
		"owner":      map[string]any{"identifier": int64(7)},
	}
	codec.EncodePayload(payload)

	if payload["identifier"] != int64(42) {
		t.Fatalf("input identifier mutated to %v", payload["identifier"])
	}
	if payload["owner"].(map[string]any)["identifier"] != int64(7) {
		t.Fatal("nested input mutated")
	}
}

func TestDecodePayloadRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	payload := map[string]any{
		"identifier": int64(42),
		"name":       "widget",
		"owner":      map[string]any{"identifier": int64(7), "name": "alice"},
		"reviews": []any{
			map[string]any{"identifier": int64(9), "rating": 5},
		},
	}

	decoded, err := codec.DecodePayload(codec.EncodePayload(payload))
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if !reflect.DeepEqual(decoded, payload) {
		t.Fatalf("round trip mismatch:\n got  %#v\n want %#v", decoded, payload)
	}
}

func TestDecodePayloadAbortsOnMalformedIdentifier(t *testing.T) {
	codec := newTestCodec(t)

	payload := map[string]any{
		"owner": map[string]any{"identifier": "definitely-not-opaque"},
	}
	if _, err := codec.DecodePayload(payload); !errors.Is(err, ErrBadIdentifier) {
		t.Fatalf("err = %v, want ErrBadIdentifier", err)
	}
}

func TestDecodePayloadNonStringIdentifierPassesThrough(t *testing.T) {
	codec := newTestCodec(t)

	decoded, err := codec.DecodePayload(map[string]any{"identifier": float64(3)})
	if err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if decoded.(map[string]any)["identifier"] != float64(3) {
		t.Fatal("non-string identifier should pass through undecoded")
	}
}
