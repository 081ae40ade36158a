package serial

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/voicerover-io/voicerover/pkg/log"
)

// DeviceWatcher waits for a candidate serial device node to appear, so the
// dispatcher can stop hammering Connect while the rover is unplugged.
type DeviceWatcher struct {
	globs  []string
	logger log.Logger
}

// NewDeviceWatcher creates a watcher over the same candidate globs the
// transport auto-detects with.
func NewDeviceWatcher(globs []string, logger log.Logger) *DeviceWatcher {
	return &DeviceWatcher{globs: globs, logger: logger.WithName("devwatch")}
}

// Wait blocks until a matching device path exists or the context is done.
// It returns the path that appeared.
func (w *DeviceWatcher) Wait(ctx context.Context) (string, error) {
	// The device may already be back.
	if device, err := Discover(w.globs, w.logger); err == nil {
		return device, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return "", err
	}
	defer watcher.Close()

	dirs := map[string]bool{}
	for _, g := range w.globs {
		dirs[filepath.Dir(g)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			w.logger.Warn("cannot watch device directory", err, "dir", dir)
		}
	}

	// Re-check after the watches are in place: the device may have
	// appeared in between.
	if device, err := Discover(w.globs, w.logger); err == nil {
		return device, nil
	}

	for {
		select {
		case event := <-watcher.Events:
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			for _, g := range w.globs {
				if ok, _ := filepath.Match(g, event.Name); ok {
					w.logger.Info("serial device appeared", "device", event.Name)
					return event.Name, nil
				}
			}
		case err := <-watcher.Errors:
			w.logger.Warn("device watcher error", err)
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}
