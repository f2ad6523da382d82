package recorder

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// ProcessProbe checks and signals processes by PID
type ProcessProbe interface {
	Alive(pid int) bool
	Signal(pid int, sig syscall.Signal) error
}

// OSProbe probes real processes with kill(2)
type OSProbe struct{}

// Alive sends signal 0. Any failure, including EPERM, counts as dead.
func (OSProbe) Alive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}

// Signal delivers sig to pid
func (OSProbe) Signal(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}

// Process is a launched capture process
type Process interface {
	PID() int
	// Exited reports whether the process has ended and its exit code
	Exited() (bool, int)
}

// Launcher starts detached capture processes
type Launcher interface {
	Launch(name string, args []string, logPath string) (Process, error)
}

// ExecLauncher runs commands in their own session so they outlive the CLI,
// with stdout and stderr sent to a log file.
type ExecLauncher struct{}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func (p *execProcess) PID() int { return p.cmd.Process.Pid }

func (p *execProcess) Exited() (bool, int) {
	select {
	case <-p.done:
		return true, p.cmd.ProcessState.ExitCode()
	default:
		return false, 0
	}
}

// Launch starts name with args
func (ExecLauncher) Launch(name string, args []string, logPath string) (Process, error) {
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	cmd := exec.Command(name, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return nil, err
	}

	p := &execProcess{cmd: cmd, done: make(chan struct{})}
	go func() {
		cmd.Wait()
		logFile.Close()
		close(p.done)
	}()
	return p, nil
}

// Runner runs a short-lived command and captures its output
type Runner interface {
	Output(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// Output runs name and returns what it wrote to stdout and stderr
func (ExecRunner) Output(ctx context.Context, name string, args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
