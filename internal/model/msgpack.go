package model

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// The MessagePack forms mirror the JSON forms: a Price is the two-element
// array [currency, value] and a PricePU is [unit, [currency, value]].

func (p Price) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeInt(int64(p.Currency)); err != nil {
		return err
	}
	return enc.EncodeInt(p.Value)
}

func (p *Price) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != 2 {
		return fmt.Errorf("price: expected 2 elements, got %d", n)
	}
	currency, err := dec.DecodeInt64()
	if err != nil {
		return err
	}
	value, err := dec.DecodeInt64()
	if err != nil {
		return err
	}
	p.Currency = Currency(currency)
	p.Value = value
	return nil
}

func (p PricePU) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeInt(int64(p.Unit)); err != nil {
		return err
	}
	return p.Price.EncodeMsgpack(enc)
}

func (p *PricePU) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n != 2 {
		return fmt.Errorf("price per unit: expected 2 elements, got %d", n)
	}
	unit, err := dec.DecodeInt64()
	if err != nil {
		return err
	}
	p.Unit = Unit(unit)
	return p.Price.DecodeMsgpack(dec)
}
