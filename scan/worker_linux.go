package scan

import (
	"context"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"

	"github.com/shazow/wifiscan/wifi"
)

// RunWorker performs the job described by the worker environment and returns
// the process exit code. ctx bounds the scan itself.
func RunWorker(ctx context.Context, lookup ProviderLookup) int {
	log := slog.Default().With("worker", os.Getenv(EnvWorker), "pid", os.Getpid())
	job, err := workerJobFromEnv(os.Getenv)
	if err != nil {
		log.Error("invalid worker job", "err", err)
		return 2
	}

	run := func() ([]wifi.ScanRecord, error) {
		scanner, err := lookup(job.provider)
		if err != nil {
			return nil, err
		}
		buf := make([]wifi.ScanRecord, job.capacity)
		n, err := scanInto(ctx, scanner, job.iface, buf)
		return buf[:n], err
	}

	switch job.mode {
	case modePipe:
		return pipeWorker(os.NewFile(3, "results"), run, log)
	case modeSignal:
		return signalWorker(os.NewFile(3, "records"), os.NewFile(4, "count"), run, log)
	case modeSHM:
		return shmWorker(os.NewFile(3, "results"), run, log)
	}
	return 2
}

func pipeWorker(f *os.File, run func() ([]wifi.ScanRecord, error), log *slog.Logger) int {
	defer f.Close()

	records, err := run()
	if err != nil {
		log.Warn("scan failed", "err", err)
		if err := WriteFailure(f); err != nil {
			log.Error("failed to report scan failure", "err", err)
		}
		return 1
	}
	if err := WriteFrame(f, records); err != nil {
		log.Error("failed to write results", "err", err)
		return 1
	}
	return exitStatus(len(records), nil)
}

func notifyParent(sig unix.Signal, log *slog.Logger) {
	if err := unix.Kill(os.Getppid(), sig); err != nil {
		log.Error("failed to signal parent", "signal", sig, "err", err)
	}
}

func signalWorker(recFile, countFile *os.File, run func() ([]wifi.ScanRecord, error), log *slog.Logger) int {
	recs, err := OpenRegion(recFile)
	if err != nil {
		log.Error("failed to map records region", "err", err)
		countFile.Close()
		notifyParent(unix.SIGUSR2, log)
		return 1
	}
	defer recs.Close()
	count, err := OpenRegion(countFile)
	if err != nil {
		log.Error("failed to map count region", "err", err)
		notifyParent(unix.SIGUSR2, log)
		return 1
	}
	defer count.Close()

	records, err := run()
	if err != nil {
		log.Warn("scan failed", "err", err)
		notifyParent(unix.SIGUSR2, log)
		return 1
	}

	n, err := encodeSlots(recs.Bytes(), records)
	if err != nil {
		log.Error("failed to store results", "err", err)
		notifyParent(unix.SIGUSR2, log)
		return 1
	}
	count.StoreUint32(0, uint32(n))
	notifyParent(unix.SIGUSR1, log)
	return exitStatus(n, nil)
}

func shmWorker(f *os.File, run func() ([]wifi.ScanRecord, error), log *slog.Logger) int {
	region, err := OpenRegion(f)
	if err != nil {
		log.Error("failed to map results region", "err", err)
		return 1
	}
	defer region.Close()

	records, err := run()
	if err != nil {
		log.Warn("scan failed", "err", err)
		region.StoreUint32(shmSuccessOffset, 0)
		region.StoreUint32(shmCompleteOffset, 1)
		return 1
	}

	n, err := encodeSlots(region.Bytes()[shmHeaderSize:], records)
	if err != nil {
		log.Error("failed to store results", "err", err)
		region.StoreUint32(shmSuccessOffset, 0)
		region.StoreUint32(shmCompleteOffset, 1)
		return 1
	}
	region.StoreUint32(shmCountOffset, uint32(n))
	region.StoreUint32(shmSuccessOffset, 1)
	region.StoreUint32(shmCompleteOffset, 1)
	return exitStatus(n, nil)
}

// encodeSlots writes as many records as fit into consecutive slots of dst.
func encodeSlots(dst []byte, records []wifi.ScanRecord) (int, error) {
	n := min(len(records), len(dst)/RecordSize)
	for i := 0; i < n; i++ {
		if err := EncodeRecord(dst[i*RecordSize:], records[i]); err != nil {
			return 0, err
		}
	}
	return n, nil
}

// decodeSlots reads n records from consecutive slots of src.
func decodeSlots(src []byte, results []wifi.ScanRecord, n int) error {
	for i := 0; i < n; i++ {
		r, err := DecodeRecord(src[i*RecordSize:])
		if err != nil {
			return err
		}
		results[i] = r
	}
	return nil
}
