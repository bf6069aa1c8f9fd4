package indicators

import "time"

// Bar is one closed OHLC bar.
type Bar struct {
	Time  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// Series keeps a rolling window of recent closed bars for one timeframe.
type Series struct {
	max  int
	bars []Bar
}

func NewSeries(max int) *Series {
	if max <= 0 {
		max = 256
	}
	return &Series{max: max}
}

// Add appends b. A bar with the same timestamp as the last one replaces it,
// so a feed that re-sends the final bar does not double count.
func (s *Series) Add(b Bar) {
	if n := len(s.bars); n > 0 && !b.Time.IsZero() && s.bars[n-1].Time.Equal(b.Time) {
		s.bars[n-1] = b
		return
	}
	s.bars = append(s.bars, b)
	if len(s.bars) > s.max {
		s.bars = s.bars[len(s.bars)-s.max:]
	}
}

func (s *Series) Len() int {
	return len(s.bars)
}

func (s *Series) Last() Bar {
	if len(s.bars) == 0 {
		return Bar{}
	}
	return s.bars[len(s.bars)-1]
}

func (s *Series) Prev() Bar {
	if len(s.bars) < 2 {
		return Bar{}
	}
	return s.bars[len(s.bars)-2]
}

func (s *Series) Highs() []float64 {
	return s.column(func(b Bar) float64 { return b.High })
}

func (s *Series) Lows() []float64 {
	return s.column(func(b Bar) float64 { return b.Low })
}

func (s *Series) Closes() []float64 {
	return s.column(func(b Bar) float64 { return b.Close })
}

func (s *Series) column(f func(Bar) float64) []float64 {
	out := make([]float64, len(s.bars))
	for i, b := range s.bars {
		out[i] = f(b)
	}
	return out
}
