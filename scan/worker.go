package scan

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/shazow/wifiscan/wifi"
)

// Environment passed to worker processes.
const (
	EnvWorker          = "WIFISCAN_WORKER"
	EnvWorkerProvider  = "WIFISCAN_WORKER_PROVIDER"
	EnvWorkerInterface = "WIFISCAN_WORKER_INTERFACE"
	EnvWorkerCapacity  = "WIFISCAN_WORKER_CAPACITY"
)

// Worker modes, one per process-based strategy.
const (
	modePipe   = "pipe"
	modeSignal = "signal"
	modeSHM    = "shm"
)

// Worker describes how to start a worker process: the same binary is
// re-executed with EnvWorker set, and its main is expected to hand control
// to RunWorker.
type Worker struct {
	// Path of the executable. Defaults to the running binary.
	Path string
	Args []string
	// Env is appended to the parent's environment.
	Env []string
	// Provider names the Scan Provider the worker should build.
	Provider string
}

// ProviderLookup builds a Scan Provider by name inside a worker process.
type ProviderLookup func(name string) (wifi.Scanner, error)

// IsWorker reports whether this process was started as a worker.
func IsWorker() bool {
	return os.Getenv(EnvWorker) != ""
}

func (w *Worker) command(mode, iface string, capacity int, files ...*os.File) (*exec.Cmd, error) {
	path := w.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("locate worker executable: %w: %w", ErrSetup, err)
		}
		path = exe
	}

	cmd := exec.Command(path, w.Args...)
	cmd.Env = append(os.Environ(), w.Env...)
	cmd.Env = append(cmd.Env,
		EnvWorker+"="+mode,
		EnvWorkerProvider+"="+w.Provider,
		EnvWorkerInterface+"="+iface,
		EnvWorkerCapacity+"="+strconv.Itoa(capacity),
	)
	cmd.ExtraFiles = files
	cmd.Stderr = os.Stderr
	return cmd, nil
}

// workerJob is what a worker process was asked to do.
type workerJob struct {
	mode     string
	provider string
	iface    string
	capacity int
}

func workerJobFromEnv(getenv func(string) string) (workerJob, error) {
	job := workerJob{
		mode:     getenv(EnvWorker),
		provider: getenv(EnvWorkerProvider),
		iface:    getenv(EnvWorkerInterface),
		capacity: wifi.MaxScanResults,
	}
	switch job.mode {
	case modePipe, modeSignal, modeSHM:
	default:
		return job, fmt.Errorf("unknown worker mode %q: %w", job.mode, wifi.ErrNotSupported)
	}
	if err := wifi.ValidateInterface(job.iface); err != nil {
		return job, err
	}
	if v := getenv(EnvWorkerCapacity); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return job, fmt.Errorf("invalid %s %q: %w", EnvWorkerCapacity, v, ErrSetup)
		}
		job.capacity = min(n, wifi.MaxScanResults)
	}
	return job, nil
}

// exitStatus is 0 when the scan produced records and 1 otherwise.
func exitStatus(n int, err error) int {
	if err != nil || n == 0 {
		return 1
	}
	return 0
}
