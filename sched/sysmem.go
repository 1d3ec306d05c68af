package sched

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"
)

// checkMemoryPressure validates the configured memory ceiling against what
// the host can actually offer. Returns a warning message when the ceiling
// exceeds available memory, empty string if OK. Advisory only: the ledger
// enforces the ceiling, this just flags configs the host cannot honor.
func checkMemoryPressure(maxMemoryMB int) string {
	if maxMemoryMB <= 0 {
		return ""
	}

	v, err := mem.VirtualMemory()
	if err != nil {
		return "" // Can't check, assume OK
	}

	availableMB := v.Available / 1024 / 1024
	if uint64(maxMemoryMB) > availableMB {
		return fmt.Sprintf(
			"Configured memory ceiling (%dMB) exceeds available system memory (%dMB). "+
				"Jobs admitted up to the ceiling may push the host into swap.",
			maxMemoryMB, availableMB)
	}

	return ""
}
