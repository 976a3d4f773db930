//go:build unix

package process

import (
	"fmt"
	"os"
	"strings"
)

// isZombie reports whether pid is a zombie, on systems with /proc
func isZombie(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return false
	}
	// Field 3 is the state; the command name in field 2 may hold spaces
	stat := string(data)
	i := strings.LastIndexByte(stat, ')')
	return i >= 0 && i+2 < len(stat) && stat[i+2] == 'Z'
}
