package deps

import (
	"cmp"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// Requirement names an external binary a pipeline stage shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the outcome of probing one Requirement. Command holds the
// resolved absolute path when the binary was found.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries probes every requirement in order.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		status := Status{
			Name:        req.Name,
			Command:     strings.TrimSpace(req.Command),
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch resolved, ok := ResolveCommand(status.Command); {
		case status.Command == "":
			status.Detail = "command not configured"
		case !ok:
			status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		default:
			status.Command = resolved
			status.Available = true
		}
		results[i] = status
	}
	return results
}

// Missing filters statuses down to unavailable required binaries.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			out = append(out, status)
		}
	}
	return out
}

// ResolveCommand returns the absolute path of command. Bare names are looked
// up on PATH; absolute paths must name an executable regular file.
func ResolveCommand(command string) (string, bool) {
	command = strings.TrimSpace(command)
	if command == "" {
		return "", false
	}
	if !filepath.IsAbs(command) {
		resolved, err := exec.LookPath(command)
		return cmp.Or(resolved, command), err == nil
	}
	info, err := os.Stat(command)
	if err != nil || !info.Mode().IsRegular() {
		return command, false
	}
	return command, unix.Access(command, unix.X_OK) == nil
}
