package types

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// DirectionPolicy restricts which sides the engine may trade.
type DirectionPolicy int

const (
	Both DirectionPolicy = iota
	LongOnly
	ShortOnly
	Disabled
)

func (d DirectionPolicy) String() string {
	switch d {
	case Both:
		return "both"
	case LongOnly:
		return "long_only"
	case ShortOnly:
		return "short_only"
	case Disabled:
		return "disabled"
	}
	return fmt.Sprintf("direction(%d)", int(d))
}

// Allows reports whether an order on side s may be opened under d.
func (d DirectionPolicy) Allows(s Side) bool {
	switch d {
	case Both:
		return s == Buy || s == Sell
	case LongOnly:
		return s == Buy
	case ShortOnly:
		return s == Sell
	case Disabled:
		return false
	}
	return false
}

// ParseDirectionPolicy accepts the config spellings ("both", "long_only",
// "LongOnly", "short-only", ...).
func ParseDirectionPolicy(s string) (DirectionPolicy, error) {
	norm := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
	switch norm {
	case "", "both":
		return Both, nil
	case "longonly", "long":
		return LongOnly, nil
	case "shortonly", "short":
		return ShortOnly, nil
	case "disabled", "none", "off":
		return Disabled, nil
	}
	return Both, fmt.Errorf("unknown direction policy %q", s)
}

func (d *DirectionPolicy) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	p, err := ParseDirectionPolicy(raw)
	if err != nil {
		return err
	}
	*d = p
	return nil
}

func (d DirectionPolicy) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Order is a market order request. Stop-loss and take-profit are distances
// from the fill price expressed in pips; zero means none.
type Order struct {
	Symbol         string
	Side           Side
	Volume         float64
	Label          string
	StopLossPips   int
	TakeProfitPips int
	// meta
	Comment string
}

// Position is a broker-owned open position as last observed.
type Position struct {
	ID         string
	Symbol     string
	Side       Side
	Label      string
	Volume     float64
	EntryPrice float64
	StopLoss   *float64 // nil = no stop set
	TakeProfit *float64
	OpenedAt   time.Time
}

// Quote is the live top of book for the traded symbol.
type Quote struct {
	Bid     float64
	Ask     float64
	PipSize float64
	Time    time.Time
}

// SpreadPips returns (ask - bid) in pips.
func (q Quote) SpreadPips() float64 {
	if q.PipSize <= 0 {
		return 0
	}
	return (q.Ask - q.Bid) / q.PipSize
}

// BarExtremes carries the raw price extremes the signal rules probe.
type BarExtremes struct {
	High     float64 // latest closed bar
	HighPrev float64 // bar before it
	Low      float64 // latest closed bar
}

// Float is a convenience for building optional price levels.
func Float(v float64) *float64 { return &v }
