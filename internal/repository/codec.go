package repository

import (
	"encoding/json"
	"fmt"

	"github.com/splax/onboard/internal/domain"
	"github.com/splax/onboard/pkg/crypto"
)

// Codec serialises pending registrations for byte-oriented stores, sealing them when a key is set.
type Codec struct {
	sealer crypto.Sealer
}

// NewCodec returns a Codec sealing payloads with sealer.
func NewCodec(sealer crypto.Sealer) Codec {
	return Codec{sealer: sealer}
}

// Encode marshals and seals reg.
func (c Codec) Encode(reg domain.PendingRegistration) ([]byte, error) {
	raw, err := json.Marshal(reg)
	if err != nil {
		return nil, fmt.Errorf("encode pending registration: %w", err)
	}
	sealed, err := c.sealer.Seal(raw)
	if err != nil {
		return nil, fmt.Errorf("seal pending registration: %w", err)
	}
	return sealed, nil
}

// Decode opens and unmarshals payload.
func (c Codec) Decode(payload []byte) (*domain.PendingRegistration, error) {
	raw, err := c.sealer.Open(payload)
	if err != nil {
		return nil, fmt.Errorf("open pending registration: %w", err)
	}
	var reg domain.PendingRegistration
	if err := json.Unmarshal(raw, &reg); err != nil {
		return nil, fmt.Errorf("decode pending registration: %w", err)
	}
	return &reg, nil
}
