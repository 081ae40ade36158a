package serial

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"time"

	bugst "go.bug.st/serial"

	"github.com/voicerover-io/voicerover/pkg/log"
)

// ErrNoDevice means auto-detection found zero candidate device paths. It is
// unrecoverable until the device reappears and the caller retries Connect.
var ErrNoDevice = errors.New("no candidate serial device found")

// Port is the minimal serial device surface the transport needs. The
// production implementation wraps go.bug.st/serial; tests substitute an
// in-memory fake.
type Port interface {
	io.ReadWriteCloser

	// SetReadTimeout bounds how long a single Read blocks. A timed-out
	// Read returns (0, nil).
	SetReadTimeout(d time.Duration) error
}

// OpenFunc opens a device path at the given baud rate.
type OpenFunc func(device string, baud int) (Port, error)

// OpenSystemPort opens a real serial device.
func OpenSystemPort(device string, baud int) (Port, error) {
	port, err := bugst.Open(device, &bugst.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	return port, nil
}

// Discover scans the candidate path globs and returns the first match in
// stable (sorted) order. More than one candidate is an ambiguity worth
// logging, not an error. Zero candidates is ErrNoDevice.
func Discover(globs []string, logger log.Logger) (string, error) {
	var candidates []string
	for _, g := range globs {
		matches, err := filepath.Glob(g)
		if err != nil {
			return "", fmt.Errorf("bad device glob %q: %w", g, err)
		}
		candidates = append(candidates, matches...)
	}
	sort.Strings(candidates)

	if len(candidates) == 0 {
		return "", ErrNoDevice
	}
	if len(candidates) > 1 {
		logger.Warn("multiple candidate serial devices, using first",
			"chosen", candidates[0], "candidates", candidates)
	}
	return candidates[0], nil
}
