package gps

import (
	"bytes"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/adrianmo/go-nmea"
)

func TestFormatFix(t *testing.T) {
	tests := []struct {
		fix  Fix
		want string
	}{
		{Fix{Latitude: 48.1173, Longitude: 11.5167}, "Latitude::48.1173\tLongitude::11.5167"},
		{Fix{Latitude: -33.8688, Longitude: 151.2093}, "Latitude::-33.8688\tLongitude::151.2093"},
		{Fix{Latitude: 0, Longitude: -180}, "Latitude::0\tLongitude::-180"},
		{Fix{Latitude: 0.00001, Longitude: 100}, "Latitude::1E-05\tLongitude::100"},
	}
	for _, tt := range tests {
		if got := FormatFix(tt.fix); got != tt.want {
			t.Errorf("FormatFix(%+v) = %q, want %q", tt.fix, got, tt.want)
		}
	}
}

// Decoded coordinates survive formatting exactly: parsing the console output
// yields the same floats the decoder produced.
func TestFormatFix_RoundTrip(t *testing.T) {
	payloads := []string{
		"GPRMC,123519,A,4807.038,N,01131.000,E,022.4,084.4,230394,003.1,W",
		"GPRMC,081836,A,3751.65,S,14507.36,E,000.0,360.0,130998,011.3,E",
		"GNRMC,220516,A,5133.82,N,00042.24,W,173.8,231.8,130694,004.2,W",
	}
	for _, p := range payloads {
		s, err := NMEADecoder{}.Decode(nmeaLine(p))
		if err != nil {
			t.Fatalf("decode %q: %v", p, err)
		}
		var fix Fix
		OnPosition(func(f Fix) error {
			fix = f
			return nil
		})(s)

		out := FormatFix(fix)
		fields := strings.Split(out, "\t")
		if len(fields) != 2 {
			t.Fatalf("output %q has %d fields", out, len(fields))
		}
		lat, err := strconv.ParseFloat(strings.TrimPrefix(fields[0], "Latitude::"), 64)
		if err != nil {
			t.Fatalf("parse latitude from %q: %v", out, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimPrefix(fields[1], "Longitude::"), 64)
		if err != nil {
			t.Fatalf("parse longitude from %q: %v", out, err)
		}
		if lat != fix.Latitude || lon != fix.Longitude {
			t.Fatalf("round trip %q: got %v,%v want %v,%v", out, lat, lon, fix.Latitude, fix.Longitude)
		}
	}
}

func TestConsoleWriter(t *testing.T) {
	var buf bytes.Buffer
	write := ConsoleWriter(&buf)
	if err := write(Fix{Latitude: 48.1173, Longitude: 11.5167}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := write(Fix{Latitude: 1.5, Longitude: -2.25}); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "Latitude::48.1173\tLongitude::11.5167\nLatitude::1.5\tLongitude::-2.25\n"
	if buf.String() != want {
		t.Fatalf("output = %q, want %q", buf.String(), want)
	}
}

func TestOnPosition(t *testing.T) {
	s, err := NMEADecoder{}.Decode(rmcExample)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	rmc := s.(nmea.RMC)

	var got []Fix
	h := OnPosition(func(f Fix) error {
		got = append(got, f)
		return nil
	})

	gga, err := NMEADecoder{}.Decode(nmeaLine("GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,"))
	if err != nil {
		t.Fatalf("decode gga: %v", err)
	}
	for _, in := range []nmea.Sentence{rmc, &rmc, gga} {
		if err := h(in); err != nil {
			t.Fatalf("handler: %v", err)
		}
	}
	if len(got) != 2 {
		t.Fatalf("got %d fixes, want 2 (RMC value and pointer)", len(got))
	}
	f := got[0]
	if !f.Valid || f.SpeedKnots != 22.4 || f.Course != 84.4 || f.Time != rmc.Time.String() {
		t.Fatalf("fix = %+v", f)
	}
	if got[1] != got[0] {
		t.Fatalf("pointer fix %+v differs from value fix %+v", got[1], got[0])
	}

	boom := errors.New("sink closed")
	failing := OnPosition(func(Fix) error { return boom })
	if err := failing(rmc); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if err := failing(gga); err != nil {
		t.Fatalf("non-RMC sentence should not reach callback: %v", err)
	}
}
