//go:build !windows

package hls

import (
	"os"
	"os/exec"
	"syscall"
)

// continuous jobs run in their own process group so signals reach any
// children the transcoder forks
func processGroupAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

func signalProcessGroup(cmd *exec.Cmd, sig os.Signal) {
	if cmd.Process == nil {
		return
	}

	if pgid, err := syscall.Getpgid(cmd.Process.Pid); err == nil {
		s, ok := sig.(syscall.Signal)
		if ok && syscall.Kill(-pgid, s) == nil {
			return
		}
	}

	_ = cmd.Process.Signal(sig)
}

func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}

	if pgid, err := syscall.Getpgid(cmd.Process.Pid); err == nil {
		if syscall.Kill(-pgid, syscall.SIGKILL) == nil {
			return
		}
	}

	_ = cmd.Process.Kill()
}
