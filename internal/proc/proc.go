// Package proc inspects host processes by executable name.
package proc

import "github.com/mitchellh/go-ps"

// IsRunning reports whether a process with the given executable name exists.
// The check is by name only; it does not distinguish multiple instances.
func IsRunning(executable string) (bool, error) {
	processList, err := ps.Processes()
	if err != nil {
		return false, err
	}

	for _, process := range processList {
		if process.Executable() == executable {
			return true, nil
		}
	}

	return false, nil
}
