package gps

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/adrianmo/go-nmea"
)

func TestDemoPort_EmitsValidSentences(t *testing.T) {
	p := NewDemoPort(10 * time.Millisecond)
	defer p.Close()
	r := bufio.NewReader(p)

	var types []string
	for i := 0; i < 4; i++ {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		s, err := NMEADecoder{}.Decode(strings.TrimSpace(line))
		if err != nil {
			t.Fatalf("demo sentence does not decode: %v", err)
		}
		types = append(types, s.DataType())
		if rmc, ok := s.(nmea.RMC); ok {
			if !approx(rmc.Latitude, 43.6532, 0.01) || !approx(rmc.Longitude, -79.3832, 0.01) {
				t.Fatalf("demo fix out of area: %v,%v", rmc.Latitude, rmc.Longitude)
			}
			if rmc.Validity != nmea.ValidRMC {
				t.Fatalf("demo fix not valid")
			}
		}
	}
	if strings.Join(types, ",") != "RMC,GGA,RMC,GGA" {
		t.Fatalf("types = %v", types)
	}
}

func TestDemoPort_CloseUnblocksRead(t *testing.T) {
	p := NewDemoPort(time.Hour)
	errc := make(chan error, 1)
	go func() {
		_, err := p.Read(make([]byte, 64))
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	select {
	case err := <-errc:
		if !errors.Is(err, io.ErrClosedPipe) {
			t.Fatalf("read err = %v, want io.ErrClosedPipe", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("read still blocked after close")
	}
}

func TestDevice_WithDemoPort(t *testing.T) {
	port := NewDemoPort(5 * time.Millisecond)
	d := NewDevice(context.Background(), Config{Type: "demo"},
		WithOpener(func(string, int) (Port, error) { return port, nil }),
		WithLogger(log.New(io.Discard, "", 0)),
	)
	fixes := make(chan Fix, 16)
	d.Subscribe(OnPosition(func(f Fix) error {
		select {
		case fixes <- f:
		default:
		}
		return nil
	}))
	if err := d.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	recvFix(t, fixes)
	recvFix(t, fixes)
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	st := d.Stats()
	if st.Sentences < 3 || st.DecodeFailures != 0 {
		t.Fatalf("stats = %+v", st)
	}
}
