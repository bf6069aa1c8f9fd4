// Package feed streams quotes and closed bars from a websocket market-data
// endpoint into the engine's event loop.
package feed

import (
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"github.com/evdnx/qsignals/indicators"
	"github.com/evdnx/qsignals/types"
)

type Kind int

const (
	KindTick Kind = iota
	KindBar
)

func (k Kind) String() string {
	switch k {
	case KindTick:
		return "tick"
	case KindBar:
		return "bar"
	}
	return "unknown"
}

// Event is one decoded feed message. Quote is set for ticks, Bar and
// Timeframe for bars.
type Event struct {
	Kind      Kind
	Symbol    string
	Timeframe string
	Quote     types.Quote
	Bar       indicators.Bar
}

// ErrUnknownMessage is returned for frames that are neither ticks nor bars.
var ErrUnknownMessage = errors.New("unknown message type")

// wireMessage is the JSON frame; time is unix milliseconds.
type wireMessage struct {
	Type      string  `json:"type"`
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	PipSize   float64 `json:"pip_size"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Time      int64   `json:"time"`
}

// Decode parses one frame.
func Decode(msg []byte) (Event, error) {
	var w wireMessage
	if err := sonic.Unmarshal(msg, &w); err != nil {
		return Event{}, errors.Wrap(err, "decode frame")
	}
	ts := time.UnixMilli(w.Time).UTC()

	switch strings.ToLower(w.Type) {
	case "tick":
		if w.Bid <= 0 || w.Ask <= 0 || w.Ask < w.Bid {
			return Event{}, errors.Errorf("invalid tick bid=%f ask=%f", w.Bid, w.Ask)
		}
		return Event{
			Kind:   KindTick,
			Symbol: w.Symbol,
			Quote:  types.Quote{Bid: w.Bid, Ask: w.Ask, PipSize: w.PipSize, Time: ts},
		}, nil
	case "bar":
		if w.Timeframe == "" {
			return Event{}, errors.New("bar without timeframe")
		}
		if w.High < w.Low || w.Close <= 0 {
			return Event{}, errors.Errorf("invalid bar high=%f low=%f close=%f", w.High, w.Low, w.Close)
		}
		return Event{
			Kind:      KindBar,
			Symbol:    w.Symbol,
			Timeframe: strings.ToLower(w.Timeframe),
			Bar:       indicators.Bar{Time: ts, Open: w.Open, High: w.High, Low: w.Low, Close: w.Close},
		}, nil
	}
	return Event{}, errors.Wrapf(ErrUnknownMessage, "%q", w.Type)
}
