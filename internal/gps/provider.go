package gps

import (
	"io"

	"github.com/adrianmo/go-nmea"
)

// Port is the line source a Device reads from. go.bug.st/serial ports satisfy
// it, as does DemoPort. Close must unblock a Read in progress.
type Port interface {
	io.ReadCloser
}

// OpenFunc opens a Port on the given device path at the given baud rate.
type OpenFunc func(portPath string, baudRate int) (Port, error)

// Config holds connection configuration for a Device.
type Config struct {
	Type     string `yaml:"type" json:"type"`          // "nmea" or "demo"
	PortPath string `yaml:"port_path" json:"portPath"` // e.g. /dev/ttyGPS
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
	// MaxReadErrors is the number of consecutive non-fatal read errors after
	// which the device gives up and closes.
	MaxReadErrors int `yaml:"max_read_errors" json:"maxReadErrors"`
}

// Handler is invoked once per decoded sentence, on the device's read
// goroutine. It must return promptly; slow consumers hand off to their own
// goroutine.
type Handler func(s nmea.Sentence) error

// Fix holds a single position fix taken from an RMC sentence.
type Fix struct {
	Valid      bool    `json:"valid"`      // Status A
	Latitude   float64 `json:"latitude"`   // Decimal degrees
	Longitude  float64 `json:"longitude"`  // Decimal degrees
	SpeedKnots float64 `json:"speedKnots"` // Speed over ground
	Course     float64 `json:"course"`     // Degrees true
	Time       string  `json:"time"`       // UTC time of fix
}

// OnPosition returns a Handler that passes only position-fix (RMC) sentences
// to fn. Every other sentence kind is ignored.
func OnPosition(fn func(Fix) error) Handler {
	return func(s nmea.Sentence) error {
		switch rmc := s.(type) {
		case nmea.RMC:
			return fn(fixFromRMC(rmc))
		case *nmea.RMC:
			return fn(fixFromRMC(*rmc))
		}
		return nil
	}
}

func fixFromRMC(rmc nmea.RMC) Fix {
	return Fix{
		Valid:      rmc.Validity == nmea.ValidRMC,
		Latitude:   rmc.Latitude,
		Longitude:  rmc.Longitude,
		SpeedKnots: rmc.Speed,
		Course:     rmc.Course,
		Time:       rmc.Time.String(),
	}
}
