package core

import (
	"testing"

	"logvault/internal/domain"
)

func TestCountMarkers(t *testing.T) {
	cases := []struct {
		name    string
		message string
		want    domain.SeverityCounts
	}{
		{"mixed markers", "[INFO ] start [ERROR ] fail [INFO ] retry", domain.SeverityCounts{Info: 2, Error: 1}},
		{"no markers", "plain text without any markers", domain.SeverityCounts{}},
		{"empty message", "", domain.SeverityCounts{}},
		{"unpadded token does not match", "[INFO] missing pad [WARN] same", domain.SeverityCounts{}},
		{"all three", "[INFO ][ERROR ][WARN ]", domain.SeverityCounts{Info: 1, Error: 1, Warn: 1}},
		{"repeated warn", "[WARN ] a [WARN ] b [WARN ] c", domain.SeverityCounts{Warn: 3}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := CountMarkers(c.message)
			if got != c.want {
				t.Fatalf("CountMarkers(%q) = %+v, want %+v", c.message, got, c.want)
			}
		})
	}
}

func TestCountMarkersAdditiveAcrossConcatenation(t *testing.T) {
	a := "[INFO ] one [ERROR ] two"
	b := "[WARN ] three [INFO ] four"
	ca, cb, cab := CountMarkers(a), CountMarkers(b), CountMarkers(a+" "+b)
	want := domain.SeverityCounts{Info: ca.Info + cb.Info, Error: ca.Error + cb.Error, Warn: ca.Warn + cb.Warn}
	if cab != want {
		t.Fatalf("concatenated counts = %+v, want %+v", cab, want)
	}
}

func TestMarker(t *testing.T) {
	for token, want := range map[string]string{
		SeverityInfo:  "[INFO ]",
		SeverityError: "[ERROR ]",
		SeverityWarn:  "[WARN ]",
	} {
		got, err := Marker(token)
		if err != nil {
			t.Fatalf("Marker(%q): %v", token, err)
		}
		if got != want {
			t.Fatalf("Marker(%q) = %q, want %q", token, got, want)
		}
	}

	if _, err := Marker("DEBUG"); err != ErrInvalidSeverity {
		t.Fatalf("expected ErrInvalidSeverity, got %v", err)
	}
	if _, err := Marker("info"); err != ErrInvalidSeverity {
		t.Fatalf("tokens are case sensitive, got %v", err)
	}
}
