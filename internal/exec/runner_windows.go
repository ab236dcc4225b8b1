//go:build windows

package exec

import "syscall"

// defaultSysProcAttr returns nil on Windows, which has no POSIX process
// groups.
func defaultSysProcAttr() *syscall.SysProcAttr {
	return nil
}

// signalName is a no-op on Windows, where children exit with codes only.
func signalName(_ interface{}) (string, bool) {
	return "", false
}
