package supervisor

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/arcan-shmif/netbridge/internal/config"
)

func TestLaunchAndWait(t *testing.T) {
	ctx := context.Background()
	c, err := Launch(ctx, "echo-test", LaunchSpec{
		Path: "/bin/echo",
		Args: []string{"hello"},
	})
	if err != nil {
		t.Skipf("/bin/echo unavailable in this environment: %v", err)
	}
	if err := c.Wait(ctx, 2*time.Second); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestCheckAliveNonePidUsesControlPoll(t *testing.T) {
	if !CheckAlive(0, func() bool { return false }) {
		t.Fatalf("expected alive when controlPoll reports no hangup")
	}
	if CheckAlive(0, func() bool { return true }) {
		t.Fatalf("expected dead when controlPoll reports hangup")
	}
}

func TestCheckAliveNonePidNoPollerAssumesAlive(t *testing.T) {
	if !CheckAlive(0, nil) {
		t.Fatalf("with no poller and no pid, must assume alive")
	}
}

func TestCheckAliveExitedChild(t *testing.T) {
	// Started without Launch: Launch's own goroutine reaps the child,
	// after which waitpid cannot report its pid to CheckAlive.
	cmd := exec.Command("/bin/true")
	if err := cmd.Start(); err != nil {
		t.Skipf("/bin/true unavailable: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for CheckAlive(cmd.Process.Pid, nil) {
		if time.Now().After(deadline) {
			t.Fatalf("expected CheckAlive to report death once the process has exited")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestReapDisabledByNoNanny(t *testing.T) {
	cfg := &config.Config{NoNanny: true}
	// Should be a no-op: calling Reap with an invalid pid must not panic
	// or spawn anything observable.
	Reap(cfg, 999999, nil)
}

func TestMergedEnvOverridesAndAppends(t *testing.T) {
	out := mergedEnv([]string{"A=1", "TZ=UTC"}, map[string]string{"TZ": "America/Regina", "B": "2"})
	got := map[string]string{}
	for _, kv := range out {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				got[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	if got["A"] != "1" || got["TZ"] != "America/Regina" || got["B"] != "2" {
		t.Fatalf("unexpected merged env: %+v", got)
	}
}
