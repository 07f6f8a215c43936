package feed

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrInvalidEnvelope is returned when a payload cannot be decoded.
var ErrInvalidEnvelope = errors.New("invalid envelope data")

// EncodeEnvelope encodes an envelope to CBOR.
func EncodeEnvelope(e *Envelope) ([]byte, error) {
	data, err := cbor.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

// DecodeEnvelope decodes a CBOR-encoded envelope.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	if len(data) == 0 {
		return nil, ErrInvalidEnvelope
	}
	var e Envelope
	dec := cbor.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	return &e, nil
}

// EncodeRow encodes a row payload for an envelope.
func EncodeRow(row map[string]any) (cbor.RawMessage, error) {
	data, err := cbor.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("failed to encode row: %w", err)
	}
	return data, nil
}

// DecodeRow decodes an envelope payload into a row map.
func DecodeRow(data cbor.RawMessage) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var row map[string]any
	if err := cbor.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	return row, nil
}

// Row returns the payload the filter should be evaluated against: the new
// row for inserts and updates, the old row for deletes.
func (e *Envelope) Row() (map[string]any, error) {
	if e.Kind == KindDelete {
		return DecodeRow(e.Old)
	}
	return DecodeRow(e.New)
}
