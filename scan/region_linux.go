package scan

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Region is an anonymous shared memory mapping backed by a memfd, so that it
// can be handed to a worker process as an open file.
type Region struct {
	name string
	file *os.File
	data []byte

	closeOnce sync.Once
	closeErr  error
}

// NewRegion creates a zeroed region of size bytes.
func NewRegion(name string, size int) (*Region, error) {
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("memfd_create %s: %w: %w", name, ErrSetup, err)
	}
	f := os.NewFile(uintptr(fd), name)
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("size region %s: %w: %w", name, ErrSetup, err)
	}
	return mapRegion(name, f, size)
}

// OpenRegion maps a region received from the parent process.
func OpenRegion(f *os.File) (*Region, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat region: %w: %w", ErrSetup, err)
	}
	return mapRegion(f.Name(), f, int(fi.Size()))
}

func mapRegion(name string, f *os.File, size int) (*Region, error) {
	if size <= 0 {
		f.Close()
		return nil, fmt.Errorf("region %s has no size: %w", name, ErrSetup)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap region %s: %w: %w", name, ErrSetup, err)
	}
	return &Region{name: name, file: f, data: data}, nil
}

func (r *Region) Name() string { return r.name }
func (r *Region) Size() int { return len(r.data) }
func (r *Region) File() *os.File { return r.file }

// Bytes exposes the mapping. The slice is invalid after Close.
func (r *Region) Bytes() []byte { return r.data }

func (r *Region) word(off int) *uint32 {
	if off < 0 || off%4 != 0 || off+4 > len(r.data) {
		panic(fmt.Sprintf("region %s: bad word offset %d", r.name, off))
	}
	return (*uint32)(unsafe.Pointer(&r.data[off]))
}

// LoadUint32 atomically reads the 32-bit word at off.
func (r *Region) LoadUint32(off int) uint32 { return atomic.LoadUint32(r.word(off)) }

// StoreUint32 atomically writes the 32-bit word at off.
func (r *Region) StoreUint32(off int, v uint32) { atomic.StoreUint32(r.word(off), v) }

// Clear zeroes the first n bytes.
func (r *Region) Clear(n int) {
	clear(r.data[:min(n, len(r.data))])
}

// Close unmaps the region and closes its file. It is safe to call more than
// once.
func (r *Region) Close() error {
	r.closeOnce.Do(func() {
		if err := unix.Munmap(r.data); err != nil {
			r.closeErr = err
		}
		r.data = nil
		if err := r.file.Close(); err != nil && r.closeErr == nil {
			r.closeErr = err
		}
	})
	return r.closeErr
}
