package model

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// OfferKind tags the promotional mechanics of an Offer.
type OfferKind string

const (
	OfferUnclassified           OfferKind = ""
	OfferMultipleForReduced     OfferKind = "MULTIPLE_FOR_REDUCED_PRICE"
	OfferAnyMultipleForReduced  OfferKind = "MULTIPLE_HETEROGENEOUS_FOR_REDUCED_PRICE"
	OfferReducedPriceAbsolute   OfferKind = "REDUCED_PRICE_ABSOLUTE"
	OfferReducedPricePercentage OfferKind = "REDUCED_PRICE_PERCENTAGE"
	OfferReducedPriceDeduction  OfferKind = "REDUCED_PRICE_DEDUCTION"
)

// Offer is a promotional annotation on a product row. The original retailer
// text is always retained verbatim; the remaining fields are filled in when
// the text matches a known pattern.
type Offer struct {
	Text                     string     `json:"text" bson:"text" msgpack:"text"`
	Kind                     OfferKind  `json:"type" bson:"type" msgpack:"type"`
	Price                    *Price     `json:"price,omitempty" bson:"price,omitempty" msgpack:"price,omitempty"`
	BulkAmount               int        `json:"bulk_amount,omitempty" bson:"bulk_amount,omitempty" msgpack:"bulk_amount,omitempty"`
	PriceReductionMultiplier float64    `json:"price_reduction_multiplier,omitempty" bson:"price_reduction_multiplier,omitempty" msgpack:"price_reduction_multiplier,omitempty"`
	MembershipOnly           bool       `json:"membership_only,omitempty" bson:"membership_only,omitempty" msgpack:"membership_only,omitempty"`
	Expiry                   *time.Time `json:"expiry,omitempty" bson:"expiry,omitempty" msgpack:"expiry,omitempty"`
}

var (
	reAnyMultipleFor = regexp.MustCompile(`(?i)^any (\d+) for (€?[\d.,]+)`)
	reMultipleFor    = regexp.MustCompile(`(?i)^(\d+) for (€?[\d.,]+)`)
	reOnlyPrice      = regexp.MustCompile(`(?i)^only (€?[\d.,]+)`)
	reSavePercent    = regexp.MustCompile(`(?i)^save (\d+)%`)
	reSavePrice      = regexp.MustCompile(`(?i)^save (€?[\d.,]+)`)
	reHalfPrice      = regexp.MustCompile(`(?i)^half price`)
	reMembership     = regexp.MustCompile(`(?i)(club\s?card|value club|membership)`)
)

// ParseOffer classifies promotional text. Unmatched text yields an
// unclassified Offer carrying the input verbatim.
func ParseOffer(text string, expiry time.Time) Offer {
	offer := Offer{Text: strings.TrimSpace(text), PriceReductionMultiplier: 1}
	if !expiry.IsZero() {
		offer.Expiry = &expiry
	}
	offer.MembershipOnly = reMembership.MatchString(text)

	switch {
	case reAnyMultipleFor.MatchString(offer.Text):
		m := reAnyMultipleFor.FindStringSubmatch(offer.Text)
		offer.Kind = OfferAnyMultipleForReduced
		offer.BulkAmount, _ = strconv.Atoi(m[1])
		if p, ok := ParsePrice(m[2]); ok {
			offer.Price = &p
		}
	case reMultipleFor.MatchString(offer.Text):
		m := reMultipleFor.FindStringSubmatch(offer.Text)
		offer.Kind = OfferMultipleForReduced
		offer.BulkAmount, _ = strconv.Atoi(m[1])
		if p, ok := ParsePrice(m[2]); ok {
			offer.Price = &p
		}
	case reOnlyPrice.MatchString(offer.Text):
		m := reOnlyPrice.FindStringSubmatch(offer.Text)
		offer.Kind = OfferReducedPriceAbsolute
		if p, ok := ParsePrice(m[1]); ok {
			offer.Price = &p
		}
	case reHalfPrice.MatchString(offer.Text):
		offer.Kind = OfferReducedPricePercentage
		offer.PriceReductionMultiplier = 0.5
	case reSavePercent.MatchString(offer.Text):
		m := reSavePercent.FindStringSubmatch(offer.Text)
		offer.Kind = OfferReducedPricePercentage
		pct, _ := strconv.Atoi(m[1])
		offer.PriceReductionMultiplier = 1 - float64(pct)/100
	case reSavePrice.MatchString(offer.Text):
		m := reSavePrice.FindStringSubmatch(offer.Text)
		offer.Kind = OfferReducedPriceDeduction
		if p, ok := ParsePrice(m[1]); ok {
			offer.Price = &p
		}
	}

	return offer
}
