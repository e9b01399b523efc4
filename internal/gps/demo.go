package gps

import (
	"fmt"
	"io"
	"math"
	"sync"
	"time"
)

// DemoPort simulates a receiver driving in a circle. Every interval it emits
// an RMC and a GGA sentence.
type DemoPort struct {
	mu      sync.Mutex
	t       float64
	pending []byte
	ticker  *time.Ticker
	now     func() time.Time

	closeOnce sync.Once
	closed    chan struct{}
}

// NewDemoPort creates a simulated port producing one fix per interval.
func NewDemoPort(interval time.Duration) *DemoPort {
	return &DemoPort{
		ticker: time.NewTicker(interval),
		now:    time.Now,
		closed: make(chan struct{}),
	}
}

// OpenDemo is an OpenFunc returning a DemoPort at 1 Hz. The path and baud
// rate are ignored.
func OpenDemo(portPath string, baudRate int) (Port, error) {
	return NewDemoPort(time.Second), nil
}

func (d *DemoPort) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for len(d.pending) == 0 {
		select {
		case <-d.closed:
			return 0, io.ErrClosedPipe
		case <-d.ticker.C:
			d.pending = d.nextSentences()
		}
	}
	select {
	case <-d.closed:
		return 0, io.ErrClosedPipe
	default:
	}
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

func (d *DemoPort) Close() error {
	d.closeOnce.Do(func() {
		d.ticker.Stop()
		close(d.closed)
	})
	return nil
}

func (d *DemoPort) nextSentences() []byte {
	d.t += 0.1

	centerLat := 43.6532 // Toronto
	centerLon := -79.3832
	radius := 0.005 // ~500m

	lat := centerLat + radius*math.Sin(d.t*0.1)
	lon := centerLon + radius*math.Cos(d.t*0.1)
	course := math.Mod(d.t*10, 360)
	latStr, latDir := toNMEACoord(lat, true)
	lonStr, lonDir := toNMEACoord(lon, false)

	now := d.now().UTC()
	hms := now.Format("150405.00")

	rmc := appendChecksum(fmt.Sprintf("$GPRMC,%s,A,%s,%s,%s,%s,%.1f,%.1f,%s,,",
		hms, latStr, latDir, lonStr, lonDir, 27.0, course, now.Format("020106")))
	gga := appendChecksum(fmt.Sprintf("$GPGGA,%s,%s,%s,%s,%s,1,12,0.8,76.0,M,-34.0,M,,",
		hms, latStr, latDir, lonStr, lonDir))
	return []byte(rmc + "\r\n" + gga + "\r\n")
}
