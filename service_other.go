//go:build !windows

package main

// RunAsService is a no-op outside Windows. The application always runs
// in the foreground; use systemd or similar for supervision.
func RunAsService() (bool, error) {
	return false, nil
}

// HandleServiceCommand is a no-op outside Windows.
func HandleServiceCommand(args []string) bool {
	return false
}
