package automation

import (
	"context"
	"fmt"
	"os/exec"
)

// Launcher performs the operating system side effects of automation tasks.
type Launcher interface {
	// Installed reports whether an executable is on PATH.
	Installed(name string) bool
	// Start launches a program without waiting for it.
	Start(ctx context.Context, name string, args ...string) error
	// Run runs a program to completion.
	Run(ctx context.Context, name string, args ...string) error
	// Open hands a URL or file to the desktop default handler.
	Open(ctx context.Context, target string) error
	// Kill stops every process whose name is exactly name.
	Kill(ctx context.Context, name string) error
}

// Exec is the Launcher backed by real processes.
type Exec struct {
	Opener string
}

func NewExec() *Exec {
	return &Exec{Opener: "xdg-open"}
}

func (e *Exec) Installed(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func (e *Exec) Start(_ context.Context, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	go cmd.Wait()
	return nil
}

func (e *Exec) Run(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w (%s)", name, err, out)
	}
	return nil
}

func (e *Exec) Open(ctx context.Context, target string) error {
	return e.Start(ctx, e.Opener, target)
}

func (e *Exec) Kill(ctx context.Context, name string) error {
	return e.Run(ctx, "pkill", KillArgs(name)...)
}

// KillArgs matches the process name exactly, never the full command line.
func KillArgs(name string) []string {
	return []string{"-x", "--", name}
}
