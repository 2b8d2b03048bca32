package model

import (
	"math"
	"testing"
)

func TestBarValidate(t *testing.T) {
	good := Bar{Timestamp: 1, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid bar rejected: %v", err)
	}

	cases := map[string]Bar{
		"high below low": {Timestamp: 1, Open: 10, High: 8, Low: 9, Close: 10},
		"nan close":      {Timestamp: 1, Open: 10, High: 11, Low: 9, Close: math.NaN()},
		"inf volume":     {Timestamp: 1, Open: 10, High: 11, Low: 9, Close: 10, Volume: math.Inf(1)},
		"negative":       {Timestamp: 1, Open: -1, High: 11, Low: 9, Close: 10},
		"no timestamp":   {Open: 10, High: 11, Low: 9, Close: 10},
	}
	for name, b := range cases {
		if b.Validate() == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestClosesVolumes(t *testing.T) {
	bars := []Bar{{Close: 1, Volume: 10}, {Close: 2, Volume: 20}}
	c, v := Closes(bars), Volumes(bars)
	if c[0] != 1 || c[1] != 2 || v[0] != 10 || v[1] != 20 {
		t.Fatalf("Closes=%v Volumes=%v", c, v)
	}
}
