package gps

import (
	"fmt"
	"strings"

	"github.com/adrianmo/go-nmea"
	"go.bug.st/serial"
)

// OpenSerial opens a UART GPS at 8N1. Reads block until data arrives or the
// port is closed; no read timeout is set so an idle receiver is not mistaken
// for a failed one.
func OpenSerial(portPath string, baudRate int) (Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portPath, mode)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// Decoder turns one raw line into a typed sentence.
type Decoder interface {
	// Decode never panics; malformed input is reported as a *DecodeError.
	Decode(line string) (nmea.Sentence, error)
}

// DecoderFunc adapts a function to the Decoder interface.
type DecoderFunc func(line string) (nmea.Sentence, error)

func (f DecoderFunc) Decode(line string) (nmea.Sentence, error) { return f(line) }

// NMEADecoder decodes NMEA 0183 sentences with go-nmea, which validates the
// checksum and the per-type field layout.
type NMEADecoder struct{}

func (NMEADecoder) Decode(line string) (s nmea.Sentence, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = nil, &DecodeError{Line: line, Err: fmt.Errorf("decoder panic: %v", r)}
		}
	}()
	s, err = nmea.Parse(line)
	if err != nil {
		return nil, &DecodeError{Line: line, Err: err}
	}
	return s, nil
}

// appendChecksum adds the "*hh" XOR checksum to a sentence body such as
// "$GPRMC,...". The checksum covers everything between '$' and '*'.
func appendChecksum(sentence string) string {
	body := strings.TrimPrefix(sentence, "$")
	var calc byte
	for i := 0; i < len(body); i++ {
		calc ^= body[i]
	}
	return fmt.Sprintf("$%s*%02X", body, calc)
}

// toNMEACoord converts decimal degrees to ddmm.mmmm (dddmm.mmmm for
// longitude) plus hemisphere.
func toNMEACoord(dec float64, isLat bool) (string, string) {
	dir := "N"
	if !isLat {
		dir = "E"
	}
	if dec < 0 {
		dec = -dec
		if isLat {
			dir = "S"
		} else {
			dir = "W"
		}
	}
	deg := int(dec)
	min := (dec - float64(deg)) * 60
	if isLat {
		return fmt.Sprintf("%02d%07.4f", deg, min), dir
	}
	return fmt.Sprintf("%03d%07.4f", deg, min), dir
}
