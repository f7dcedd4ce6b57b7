// Package supervisor launches frame-producer child processes and
// tracks their liveness: a non-blocking check usable from a poll loop,
// and a bounded-wait-then-kill reaper for children that refuse to
// exit.
package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/arcan-shmif/netbridge/internal/config"
	"github.com/arcan-shmif/netbridge/internal/metrics"
)

// LaunchSpec describes a producer child to start: the executable and
// its argv, plus the environment it should see in addition to the
// process's own (filtered) environment.
type LaunchSpec struct {
	Path string
	Args []string
	Env  map[string]string
	Dir  string
}

// Child is a launched producer process plus the plumbing needed to
// track and, if necessary, terminate it.
type Child struct {
	cmd    *exec.Cmd
	Pid    int
	waitCh chan error
	ioWG   sync.WaitGroup
}

// Launch starts a producer according to spec, following the same
// env-merge/stdout-stderr-log-prefixing shape used for other child
// processes in this codebase.
func Launch(ctx context.Context, name string, spec LaunchSpec) (*Child, error) {
	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	cmd.Env = mergedEnv(os.Environ(), spec.Env)
	if spec.Dir != "" {
		cmd.Dir = spec.Dir
	}
	// Detach from our process group so a KILL from the reaper never
	// races a ^C delivered to this process's own group.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("supervisor: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("supervisor: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("supervisor: start %s: %w", name, err)
	}
	log.Printf("supervisor[%s]: pid=%d args=%q", name, cmd.Process.Pid, strings.Join(spec.Args, " "))

	c := &Child{cmd: cmd, Pid: cmd.Process.Pid, waitCh: make(chan error, 1)}
	c.ioWG.Add(2)
	go func() {
		defer c.ioWG.Done()
		copyPrefixed(name, "stdout", stdout)
	}()
	go func() {
		defer c.ioWG.Done()
		copyPrefixed(name, "stderr", stderr)
	}()
	go func() { c.waitCh <- cmd.Wait() }()

	return c, nil
}

// CheckAlive implements check_alive(PR): for a child_pid of NONE (no
// exec'd process, controlPoll is the only liveness signal) it reports
// death only on ERR|HUP|NVAL from controlPoll; otherwise it issues a
// non-blocking waitpid and reports death only when the wait returns
// exactly this child's pid -- any other result (including "not yet
// exited") is reported alive, since the producer may legitimately
// exec() and change identity underneath the same pid.
func CheckAlive(pid int, controlPoll func() (hangup bool)) bool {
	if pid <= 0 {
		if controlPoll == nil {
			return true
		}
		return !controlPoll()
	}

	var ws unix.WaitStatus
	got, err := unix.Wait4(pid, &ws, unix.WNOHANG, nil)
	if err != nil {
		// ECHILD or similar: we can no longer observe this pid, treat as
		// alive rather than guess -- the next poll gets another chance.
		return true
	}
	return got != pid
}

// Reap implements reap(pid): a detached worker that loops up to 10
// times with 1-second sleeps, issuing a non-blocking waitpid each
// time; on the last iteration it sends KILL unconditionally. Disabled
// entirely when cfg.NoNanny is set, for debuggers that reap their own
// children. m may be nil; when set, an unconditional KILL increments
// m.ReapKills.
func Reap(cfg *config.Config, pid int, m *metrics.Metrics) {
	if cfg != nil && cfg.NoNanny {
		return
	}
	if pid <= 0 {
		return
	}
	go nanny(pid, m)
}

const nannyIterations = 10

func nanny(pid int, m *metrics.Metrics) {
	var ws unix.WaitStatus
	for i := 0; i < nannyIterations; i++ {
		time.Sleep(1 * time.Second)
		got, err := unix.Wait4(pid, &ws, unix.WNOHANG, nil)
		if err != nil || got == pid {
			return
		}
		if i == nannyIterations-1 {
			_ = unix.Kill(pid, unix.SIGKILL)
			_, _ = unix.Wait4(pid, &ws, 0, nil)
			if m != nil {
				m.ReapKills.Inc()
			}
		}
	}
}

// Wait blocks until the child exits, for callers that already know
// they want to join rather than poll.
func (c *Child) Wait(ctx context.Context, killAfter time.Duration) error {
	select {
	case <-ctx.Done():
		_ = signalChild(c.cmd.Process)
		select {
		case err := <-c.waitCh:
			c.ioWG.Wait()
			return err
		case <-time.After(killAfter):
			_ = c.cmd.Process.Kill()
			<-c.waitCh
			c.ioWG.Wait()
			return ctx.Err()
		}
	case err := <-c.waitCh:
		c.ioWG.Wait()
		return err
	}
}

func signalChild(p *os.Process) error {
	if p == nil {
		return nil
	}
	return p.Signal(os.Interrupt)
}

func copyPrefixed(name, stream string, r io.Reader) {
	sc := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	sc.Buffer(buf, 1024*1024)
	for sc.Scan() {
		log.Printf("[%s %s] %s", name, stream, sc.Text())
	}
	if err := sc.Err(); err != nil {
		log.Printf("[%s %s] read err=%v", name, stream, err)
	}
}

func mergedEnv(base []string, overrides map[string]string) []string {
	out := append([]string(nil), base...)
	if len(overrides) == 0 {
		return out
	}
	idx := make(map[string]int, len(out))
	for i, kv := range out {
		k, _, ok := strings.Cut(kv, "=")
		if ok {
			idx[k] = i
		}
	}
	for k, v := range overrides {
		kv := k + "=" + v
		if i, ok := idx[k]; ok {
			out[i] = kv
		} else {
			out = append(out, kv)
		}
	}
	return out
}
