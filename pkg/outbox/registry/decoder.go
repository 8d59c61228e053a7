package registry

import (
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/farmlabor-backend/pkg/enums"
)

// DecodeFunc turns an envelope's data into a typed payload pointer.
type DecodeFunc func(data json.RawMessage) (any, error)

// DecodeJSON decodes data into a fresh *T.
func DecodeJSON[T any](data json.RawMessage) (any, error) {
	payload := new(T)
	if err := json.Unmarshal(data, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

type schemaKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry holds the payload schemas a consumer understands, keyed by
// event type and envelope version. Register everything before the first Decode.
type DecoderRegistry struct {
	decoders map[schemaKey]DecodeFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: make(map[schemaKey]DecodeFunc)}
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decode DecodeFunc) {
	r.decoders[schemaKey{eventType: eventType, version: version}] = decode
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, data json.RawMessage) (any, error) {
	decode, ok := r.decoders[schemaKey{eventType: eventType, version: version}]
	if !ok {
		return nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, version)
	}
	return decode(data)
}
