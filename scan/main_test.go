package scan

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/shazow/wifiscan/wifi"
	"github.com/shazow/wifiscan/wifi/mock"
)

// envTestBehaviour lets a test make its worker misbehave.
const envTestBehaviour = "WIFISCAN_TEST_BEHAVIOUR"

func TestMain(m *testing.M) {
	if IsWorker() {
		os.Exit(runTestWorker())
	}
	os.Exit(m.Run())
}

func runTestWorker() int {
	switch os.Getenv(envTestBehaviour) {
	case "malformed":
		// Announce three records, deliver a few bytes.
		f := os.NewFile(3, "results")
		f.Write([]byte{3, 0, 0, 0, 0xde, 0xad})
		f.Close()
		return 0
	case "silent":
		return 0
	case "overcount":
		return overcountWorker()
	case "ignore-term":
		signal.Ignore(syscall.SIGTERM)
	}
	return RunWorker(context.Background(), func(name string) (wifi.Scanner, error) {
		if name != "mock" {
			return nil, wifi.ErrNotFound
		}
		return mock.FromEnviron(os.Getenv)
	})
}

// overcountWorker claims one more record than the shared region can hold.
func overcountWorker() int {
	switch os.Getenv(EnvWorker) {
	case modeSignal:
		count, err := OpenRegion(os.NewFile(4, "count"))
		if err != nil {
			return 1
		}
		defer count.Close()
		count.StoreUint32(0, wifi.MaxScanResults+1)
		unix.Kill(os.Getppid(), unix.SIGUSR1)
	case modeSHM:
		region, err := OpenRegion(os.NewFile(3, "results"))
		if err != nil {
			return 1
		}
		defer region.Close()
		region.StoreUint32(shmCountOffset, wifi.MaxScanResults+1)
		region.StoreUint32(shmSuccessOffset, 1)
		region.StoreUint32(shmCompleteOffset, 1)
	}
	return 0
}

// newMock returns a mock provider with n records and no delay.
func newMock(n int) *mock.Scanner {
	s := mock.New()
	s.Networks = mock.Records(n)
	s.ActionSleep = 0
	return s
}
