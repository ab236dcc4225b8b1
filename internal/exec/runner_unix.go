//go:build unix

package exec

import "syscall"

// defaultSysProcAttr gives the child its own process group so signals sent
// to the parent's group do not reach it.
func defaultSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}
}

// signalName reports the signal that terminated the process, if any.
func signalName(state interface{}) (string, bool) {
	ws, ok := state.(syscall.WaitStatus)
	if !ok || !ws.Signaled() {
		return "", false
	}
	return ws.Signal().String(), true
}
