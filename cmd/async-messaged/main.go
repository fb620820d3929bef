package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/grizzly-loadtest/async-messaged/internal/broker"
	"github.com/grizzly-loadtest/async-messaged/internal/config"
	"github.com/grizzly-loadtest/async-messaged/internal/integration"
	"github.com/grizzly-loadtest/async-messaged/internal/logging"

	log "github.com/sirupsen/logrus"
)

// routerChildEnv is the sentinel that tells a re-exec'd process it is the
// router child rather than the supervising parent.
const routerChildEnv = "ASYNC_MESSAGED_ROUTER_CHILD"

// processName is the visible name the router child reports in logs; there
// is no setproctitle-equivalent library in this project's dependency
// stack, so this is surfaced as a log field instead of the OS process
// title.
const processName = "grizzly-async-messaged"

// version is stamped by the release build; unset in development builds.
var version = "dev"

var versionFlag = regexp.MustCompile(`^-V$|^(--)?version$`)

// processArgs handles the one flag this daemon recognises before doing
// any other startup work, mirroring the teacher's processArgs in
// proxy/main.go.
func processArgs() {
	if len(os.Args) > 1 && versionFlag.MatchString(os.Args[1]) {
		fmt.Println(version)
		os.Exit(0)
	}
}

func main() {
	processArgs()

	if os.Getenv(routerChildEnv) == "1" {
		runRouterChild()
		return
	}
	os.Exit(runParent())
}

// runParent re-execs this binary as a detached child running the router,
// then waits on SIGINT/SIGTERM to tear it down, mirroring spec.md §5's
// fork-and-signal process topology. After a SIGINT (keyboard interrupt) the
// parent exits 1; otherwise it exits with the child's exit code.
func runParent() int {
	cfg := config.GetConfig()
	logging.Initialize(cfg.Log)
	logging.EnableFileSinkIfDebug()

	cmd := exec.Command(os.Args[0])
	cmd.Env = append(os.Environ(), routerChildEnv+"=1")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		log.WithError(err).Error("failed to start router child process")
		return 1
	}

	log.WithFields(log.Fields{"pid": cmd.Process.Pid}).Info("router child started")

	childDone := make(chan error, 1)
	go func() { childDone <- cmd.Wait() }()

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-termChan:
		log.WithFields(log.Fields{"signal": sig}).Info("received shutdown signal")
		code := shutdownChild(cmd, childDone)
		if sig == syscall.SIGINT {
			return 1
		}
		return code
	case err := <-childDone:
		return exitCodeOf(err)
	}
}

// shutdownChild forwards the signal to the child, joins with a 3s
// timeout, and escalates to Kill if the child has not exited by then.
func shutdownChild(cmd *exec.Cmd, childDone <-chan error) int {
	_ = cmd.Process.Signal(syscall.SIGTERM)

	select {
	case err := <-childDone:
		log.Info("router child exited cleanly")
		return exitCodeOf(err)
	case <-time.After(3 * time.Second):
		log.Warn("router child did not exit within 3s, killing")
		_ = cmd.Process.Kill()
		<-childDone
		return 1
	}
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// runRouterChild is the body of the forked process: bind the router and
// serve until the parent sends SIGTERM.
func runRouterChild() {
	cfg := config.GetConfig()
	logging.Initialize(cfg.Log)
	logging.EnableFileSinkIfDebug()

	log.WithFields(log.Fields{"process": processName}).Info("router child starting")

	factory := integration.NewHandlerFactory()
	r := broker.NewRouter(cfg.FrontendEndpoint, cfg.BackendEndpoint, factory)

	if err := r.Bind(); err != nil {
		log.WithError(err).Error("failed to bind router sockets")
		os.Exit(1)
	}

	ctx, cancel := signalContext()
	defer cancel()

	r.Run(ctx)

	fmt.Fprintln(os.Stderr, "router stopped")
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, the
// cancellation token the router and its workers are threaded with per
// spec.md §9's "process-wide worker pool + shared shutdown event"
// re-architecture note.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		cancel()
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}
