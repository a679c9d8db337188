package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 90*time.Second, ParseDuration("90s"))
	assert.Equal(t, 5*time.Minute, ParseDuration(""))
	assert.Equal(t, 5*time.Minute, ParseDuration("soon"))
	assert.Equal(t, 5*time.Minute, ParseDuration("-1m"))
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"10", 10, true},
		{" 2.5 ", 2.5, true},
		{"-3e2", -300, true},
		{"Missing", 0, false},
		{"", 0, false},
		{"NaN", 0, false},
		{"+Inf", 0, false},
		{"1,5", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFileType(t *testing.T) {
	assert.Equal(t, "csv", FileType("out/summary.CSV"))
	assert.Equal(t, "json", FileType("batch.json"))
	assert.Equal(t, "excel", FileType("batch.xlsx"))
	assert.Equal(t, "unknown", FileType("batch"))
}
