// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/jacobsa/daemonize"
	"github.com/kardianos/osext"

	"github.com/FreddyVRetro/etherdfs-go/cfg"
	"github.com/FreddyVRetro/etherdfs-go/internal/logger"
	"github.com/FreddyVRetro/etherdfs-go/internal/metrics"
	"github.com/FreddyVRetro/etherdfs-go/internal/redirector"
	"github.com/FreddyVRetro/etherdfs-go/internal/transaction"
)

const (
	// SuccessfulInstallMessage is written to stdout/log once the redirector
	// is installed and its drives are ready for use.
	SuccessfulInstallMessage = "etherdfsd: redirector installed"

	// UnsuccessfulInstallMessagePrefix prefixes a failed install's error.
	UnsuccessfulInstallMessagePrefix = "etherdfsd: install failed"
)

// runRedirector is the root command's entry point (spec.md §4.G bootstrap),
// dispatching to install, unload or daemonized-install depending on c.
func runRedirector(c *cfg.Config) error {
	if err := logger.Init(c.AppName, c.Logging); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if c.Unload {
		return unloadRedirector()
	}

	if err := resolveConfigPaths(c); err != nil {
		return fmt.Errorf("resolving paths: %w", err)
	}

	logger.Infof("etherdfsd starting: %s", cfg.Stringify(c))

	if !c.Foreground {
		return daemonizeSelf()
	}

	return runForeground(c)
}

// daemonizeSelf re-execs the current binary with --foreground prepended,
// the direct modern analog of the DOS TSR installing itself resident
// (spec.md §2 AMBIENT STACK "Daemonization"). It mirrors gcsfuse's
// legacy_main.go daemonization block: locate our own executable via
// osext, pass PATH/HOME through, and hand off to daemonize.Run.
func daemonizeSelf() error {
	path, err := osext.Executable()
	if err != nil {
		return fmt.Errorf("osext.Executable: %w", err)
	}

	args := append([]string{"--foreground"}, os.Args[1:]...)

	env := []string{fmt.Sprintf("PATH=%s", os.Getenv("PATH"))}
	if wd, err := os.Getwd(); err == nil {
		env = append(env, fmt.Sprintf("ETHERDFSD_PARENT_DIR=%s", wd))
	}
	if home, err := os.UserHomeDir(); err == nil {
		env = append(env, fmt.Sprintf("HOME=%s", home))
	}

	if err := daemonize.Run(path, args, env, os.Stdout); err != nil {
		return fmt.Errorf("daemonize.Run: %w", err)
	}
	logger.Info(SuccessfulInstallMessage)
	return nil
}

// runForeground installs the redirector in this process, signals the
// parent daemonize process (if any) that installation succeeded, and
// blocks until SIGINT/SIGTERM, at which point it tears the redirector
// down (spec.md §4.G teardown).
func runForeground(c *cfg.Config) error {
	rec, shutdownMetrics := startMetrics()
	defer shutdownMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := redirector.Install(ctx, *c, rec)
	if err != nil {
		wrapped := fmt.Errorf("%s: %w", UnsuccessfulInstallMessagePrefix, err)
		logger.Errorf("%v", wrapped)
		signalParentOutcome(wrapped)
		return wrapped
	}

	if err := writePIDFile(); err != nil {
		logger.Warnf("could not write pid file: %v", err)
	}
	defer removePIDFile()

	logger.Info(SuccessfulInstallMessage)
	signalParentOutcome(nil)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	return engine.Uninstall()
}

// signalParentOutcome tells daemonize's waiting parent process (if this
// process was actually launched by daemonizeSelf) whether install
// succeeded. Absorbing its own error as a log line mirrors gcsfuse's
// callDaemonizeSignalOutcome helper.
func signalParentOutcome(installErr error) {
	if err := daemonize.SignalOutcome(installErr); err != nil {
		logger.Errorf("signal outcome to parent process: %v", err)
	}
}

// startMetrics wires a Prometheus-backed transaction.Recorder when the
// exporter can be created, and returns a no-op recorder plus a shutdown
// function otherwise; metrics are ambient instrumentation, never a reason
// to fail startup.
func startMetrics() (transaction.Recorder, func()) {
	handle, _, err := metrics.NewPrometheusHandle()
	if err != nil {
		logger.Warnf("metrics disabled: %v", err)
		return transaction.NopRecorder{}, func() {}
	}
	return handle, func() {
		if err := handle.Shutdown(context.Background()); err != nil {
			logger.Warnf("metrics shutdown: %v", err)
		}
	}
}

// unloadRedirector implements the --unload path of spec.md §6: signal the
// running foreground process to tear itself down via the same SIGTERM path
// an operator's Ctrl-C would take.
func unloadRedirector() error {
	pid, err := readPIDFile()
	if err != nil {
		return fmt.Errorf("unload: %w", err)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("unload: find process %d: %w", pid, err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("unload: signal process %d: %w", pid, err)
	}

	logger.Infof("unload: sent shutdown signal to redirector process %d", pid)
	return nil
}

func pidFilePath() string {
	return filepath.Join(os.TempDir(), "etherdfsd.pid")
}

func writePIDFile() error {
	return os.WriteFile(pidFilePath(), []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func removePIDFile() {
	_ = os.Remove(pidFilePath())
}

func readPIDFile() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, fmt.Errorf("read %s: %w (is the redirector installed?)", pidFilePath(), err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pid file %s: %w", pidFilePath(), err)
	}
	return pid, nil
}
