package engine

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/teranos/rtsne/errors"
)

// availableMemory reports free memory in bytes.
func availableMemory() (uint64, error) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get memory stats")
	}
	return v.Available, nil
}

// exactMemoryBytes estimates the dense P and Q matrices exact mode keeps.
func exactMemoryBytes(n int) uint64 {
	return 2 * uint64(n) * uint64(n) * 8
}

func (e *Engine) checkExactMemory(n int) error {
	if e.memoryProbe == nil {
		return nil
	}
	available, err := e.memoryProbe()
	if err != nil {
		// Can't check, assume OK
		e.logger.Debugw("Skipping memory check", "error", err)
		return nil
	}

	need := exactMemoryBytes(n)
	if need > available {
		return errors.WithHint(
			errors.Newf("insufficient memory: exact t-SNE on %d points needs %s, %s available",
				n, formatBytes(need), formatBytes(available)),
			"use theta > 0 for the Barnes-Hut approximation")
	}
	return nil
}

func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
