package timefmt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDuration(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0s"},
		{45, "45s"},
		{59, "59s"},
		{60, "1m"},
		{90, "1m 30s"},
		{720, "12m"},
		{3599, "59m 59s"},
		{3600, "1h"},
		{5400, "1h 30m"},
		{3661, "1h 1m"},
		{7200, "2h"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Duration(tt.seconds), "Duration(%d)", tt.seconds)
	}
}

func TestRemaining(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0:00"},
		{5, "0:05"},
		{65, "1:05"},
		{600, "10:00"},
		{3599, "59:59"},
		{3600, "1:00:00"},
		{3725, "1:02:05"},
		{-3, "0:00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Remaining(tt.seconds), "Remaining(%d)", tt.seconds)
	}
}
