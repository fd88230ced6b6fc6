package utils

import (
	"math"
	"testing"
	"time"
)

func TestLastSessionWindow(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		wantOpen  time.Time
		wantClose time.Time
	}{
		{
			name:      "saturday falls back to friday (EDT)",
			now:       time.Date(2026, 10, 17, 15, 0, 0, 0, time.UTC),
			wantOpen:  time.Date(2026, 10, 16, 13, 30, 0, 0, time.UTC),
			wantClose: time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC),
		},
		{
			name:      "sunday falls back to friday",
			now:       time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC),
			wantOpen:  time.Date(2026, 10, 16, 13, 30, 0, 0, time.UTC),
			wantClose: time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC),
		},
		{
			name:      "monday falls back to previous friday",
			now:       time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC),
			wantOpen:  time.Date(2026, 10, 16, 13, 30, 0, 0, time.UTC),
			wantClose: time.Date(2026, 10, 16, 20, 0, 0, 0, time.UTC),
		},
		{
			name:      "wednesday falls back to tuesday",
			now:       time.Date(2026, 10, 14, 15, 0, 0, 0, time.UTC),
			wantOpen:  time.Date(2026, 10, 13, 13, 30, 0, 0, time.UTC),
			wantClose: time.Date(2026, 10, 13, 20, 0, 0, 0, time.UTC),
		},
		{
			name:      "late friday UTC is still friday in new york",
			now:       time.Date(2026, 10, 17, 2, 0, 0, 0, time.UTC),
			wantOpen:  time.Date(2026, 10, 15, 13, 30, 0, 0, time.UTC),
			wantClose: time.Date(2026, 10, 15, 20, 0, 0, 0, time.UTC),
		},
		{
			name:      "winter saturday uses EST offsets",
			now:       time.Date(2026, 12, 19, 15, 0, 0, 0, time.UTC),
			wantOpen:  time.Date(2026, 12, 18, 14, 30, 0, 0, time.UTC),
			wantClose: time.Date(2026, 12, 18, 21, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			open, end := LastSessionWindow(tt.now)
			if !open.Equal(tt.wantOpen) || !end.Equal(tt.wantClose) {
				t.Fatalf("window = %s..%s, want %s..%s", open, end, tt.wantOpen, tt.wantClose)
			}
		})
	}
}

func TestIsRegularSession(t *testing.T) {
	if !IsRegularSession(time.Date(2026, 10, 14, 14, 0, 0, 0, time.UTC)) {
		t.Error("10:00 EDT on a wednesday should be in session")
	}
	if IsRegularSession(time.Date(2026, 10, 14, 20, 0, 0, 0, time.UTC)) {
		t.Error("16:00 EDT is the close, not in session")
	}
	if IsRegularSession(time.Date(2026, 10, 17, 14, 0, 0, 0, time.UTC)) {
		t.Error("saturday is never in session")
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{1.234, 1.23},
		{1.235, 1.24},
		{-1.235, -1.24},
		{100, 100},
		{0.005, 0.01},
	}
	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if !math.IsNaN(Round2(math.NaN())) {
		t.Error("Round2(NaN) should stay NaN")
	}
}

func TestFormatters(t *testing.T) {
	if got := FormatUSD(1234567.891); got != "$1,234,567.89" {
		t.Errorf("FormatUSD = %q", got)
	}
	if got := FormatUSD(-12.5); got != "-$12.50" {
		t.Errorf("FormatUSD negative = %q", got)
	}
	if got := FormatVolume(1000); got != "1,000" {
		t.Errorf("FormatVolume = %q", got)
	}
	if got := FormatCompact(2.5e12); got != "2.50T" {
		t.Errorf("FormatCompact = %q", got)
	}
	if got := FormatPercent(1.5); got != "+1.50%" {
		t.Errorf("FormatPercent = %q", got)
	}
}
