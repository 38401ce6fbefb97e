package multiproc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"math/bits"
	"os"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
)

// File layout:
//
//	0      4      8
//	| used | pad  | entry | entry | ... | free space |
//
//	entry: keylen uint32 | key | spaces up to 8-byte alignment | value float64 | timestamp float64
//
// All integers and floats are little endian. An entry is written completely
// before used is advanced, and used is advanced with a single 32-bit store, so
// a reader that loads used first only ever walks complete entries.
const (
	headerSize      = 8
	initialFileSize = 1 << 20
)

var (
	// ErrCorrupt is returned when a process file does not follow the layout.
	ErrCorrupt = errors.New("corrupt process file")

	// ErrUnsupported is returned on platforms without shared memory maps.
	ErrUnsupported = errors.New("memory-mapped process files are not supported on this platform")
)

var bigEndianHost = func() bool {
	x := uint16(1)
	return *(*byte)(unsafe.Pointer(&x)) == 0
}()

func le64(v uint64) uint64 {
	if bigEndianHost {
		return bits.ReverseBytes64(v)
	}
	return v
}

func le32(v uint32) uint32 {
	if bigEndianHost {
		return bits.ReverseBytes32(v)
	}
	return v
}

// Word access into the mapping. Offsets are always multiples of the word size
// and mappings are page aligned, so these are naturally aligned atomic ops.
func word64(data []byte, off int) *uint64 { return (*uint64)(unsafe.Pointer(&data[off])) }
func word32(data []byte, off int) *uint32 { return (*uint32)(unsafe.Pointer(&data[off])) }

func loadFloat(data []byte, off int) float64 {
	return math.Float64frombits(le64(atomic.LoadUint64(word64(data, off))))
}

func storeFloat(data []byte, off int, v float64) {
	atomic.StoreUint64(word64(data, off), le64(math.Float64bits(v)))
}

func loadUsed(data []byte) int {
	return int(le32(atomic.LoadUint32(word32(data, 0))))
}

func storeUsed(data []byte, used int) {
	atomic.StoreUint32(word32(data, 0), le32(uint32(used)))
}

// paddedKeyLen is the size of the key region so that 4+region is a multiple
// of 8. A key whose length already aligns still gets 8 bytes of padding; this
// keeps files readable by other implementations of the same layout.
func paddedKeyLen(keyLen int) int {
	return keyLen + (8 - (keyLen+4)%8)
}

func entrySize(keyLen int) int {
	return 4 + paddedKeyLen(keyLen) + 16
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Entry is one key with its current value as read from a process file.
type Entry struct {
	Key       string
	Value     float64
	Timestamp float64
}

// walkEntries calls fn for every complete entry up to used. It returns
// ErrCorrupt when an entry runs past used or the header is impossible.
//
// An empty file and a header with used == 0 hold no entries: the writer
// creates and sizes the file before it initializes the header.
func walkEntries(data []byte, fn func(key string, valueOff int) error) error {
	if len(data) == 0 {
		return nil
	}
	if len(data) < headerSize {
		return fmt.Errorf("%w: %d bytes is smaller than the header", ErrCorrupt, len(data))
	}
	used := loadUsed(data)
	if used == 0 {
		return nil
	}
	if used < headerSize || used > len(data) {
		return fmt.Errorf("%w: used=%d outside [%d,%d]", ErrCorrupt, used, headerSize, len(data))
	}

	pos := headerSize
	for pos < used {
		if pos+4 > used {
			return fmt.Errorf("%w: truncated entry header at offset %d", ErrCorrupt, pos)
		}
		keyLen := int(binary.LittleEndian.Uint32(data[pos:]))
		end := pos + entrySize(keyLen)
		if keyLen <= 0 || end > used {
			return fmt.Errorf("%w: entry at offset %d with key length %d overruns used=%d", ErrCorrupt, pos, keyLen, used)
		}
		key := string(data[pos+4 : pos+4+keyLen])
		if err := fn(key, pos+4+paddedKeyLen(keyLen)); err != nil {
			return err
		}
		pos = end
	}
	return nil
}

// ReadFile returns a snapshot of every entry in the process file at path.
// Values are read with atomic loads from a read-only mapping, so concurrent
// writers are observed either before or after each write. A file removed
// before it could be opened yields an error matching fs.ErrNotExist.
func ReadFile(path string) ([]Entry, error) {
	data, release, err := mapReadOnly(path)
	if errors.Is(err, ErrUnsupported) {
		data, err = os.ReadFile(path)
		release = func() {}
	}
	if err != nil {
		return nil, err
	}
	defer release()

	var entries []Entry
	err = walkEntries(data, func(key string, off int) error {
		entries = append(entries, Entry{
			Key:       key,
			Value:     loadFloat(data, off),
			Timestamp: loadFloat(data, off+8),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// mapReadOnly maps path for reading. When the file grew between stat and the
// load of used, it maps again once with the new size.
func mapReadOnly(path string) ([]byte, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	for attempt := 0; attempt < 2; attempt++ {
		st, err := f.Stat()
		if err != nil {
			return nil, nil, err
		}
		if st.Size() == 0 {
			return nil, func() {}, nil
		}
		if st.Size() < headerSize {
			return nil, nil, fmt.Errorf("%w: %d bytes is smaller than the header", ErrCorrupt, st.Size())
		}
		data, err := mapFile(f, int(st.Size()), false)
		if err != nil {
			return nil, nil, err
		}
		if loadUsed(data) <= len(data) || attempt == 1 {
			return data, func() { _ = unmapFile(data) }, nil
		}
		_ = unmapFile(data)
	}
	return nil, nil, fs.ErrInvalid
}

// MappedFile is the writer side of one process file. Only the owning process
// writes it. Inside that process value writes share the read lock and run
// concurrently with atomic operations; appending a key or growing the mapping
// takes the write lock.
type MappedFile struct {
	path string

	mu        sync.RWMutex
	f         *os.File
	data      []byte
	used      int
	positions map[string]int
}

// OpenMappedFile opens or creates the process file at path and maps it. Keys
// already present (a restarted process reusing its id) keep their values.
func OpenMappedFile(path string) (*MappedFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := int(st.Size())
	if size > 0 && size < headerSize {
		f.Close()
		return nil, fmt.Errorf("open %s: %w: %d bytes is smaller than the header", path, ErrCorrupt, size)
	}
	if size == 0 {
		size = initialFileSize
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, fmt.Errorf("allocate %s: %w", path, err)
		}
	}

	data, err := mapFile(f, size, true)
	if err != nil {
		f.Close()
		return nil, err
	}

	mf := &MappedFile{
		path:      path,
		f:         f,
		data:      data,
		positions: make(map[string]int),
	}

	if loadUsed(data) == 0 {
		storeUsed(data, headerSize)
	}
	err = walkEntries(data, func(key string, off int) error {
		mf.positions[key] = off
		return nil
	})
	if err != nil {
		_ = mf.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	mf.used = loadUsed(data)
	return mf, nil
}

// Path returns the file path.
func (m *MappedFile) Path() string { return m.path }

// offset returns the value offset of key, appending an entry when the key is
// new.
func (m *MappedFile) offset(key string) (int, error) {
	m.mu.RLock()
	off, ok := m.positions[key]
	closed := m.data == nil
	m.mu.RUnlock()
	if ok {
		return off, nil
	}
	if closed {
		return 0, fs.ErrClosed
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if off, ok := m.positions[key]; ok {
		return off, nil
	}
	if m.data == nil {
		return 0, fs.ErrClosed
	}

	need := entrySize(len(key))
	if m.used+need > len(m.data) {
		if err := m.grow(m.used + need); err != nil {
			return 0, err
		}
	}

	pos := m.used
	binary.LittleEndian.PutUint32(m.data[pos:], uint32(len(key)))
	copy(m.data[pos+4:], key)
	pad := paddedKeyLen(len(key))
	for i := pos + 4 + len(key); i < pos+4+pad; i++ {
		m.data[i] = ' '
	}
	off = pos + 4 + pad
	storeFloat(m.data, off, 0)
	storeFloat(m.data, off+8, 0)

	m.used = pos + need
	storeUsed(m.data, m.used)
	m.positions[key] = off
	return off, nil
}

// grow doubles the file until at least need bytes fit and remaps it. Callers
// hold the write lock.
func (m *MappedFile) grow(need int) error {
	size := len(m.data)
	for size < need {
		size *= 2
	}
	if err := m.f.Truncate(int64(size)); err != nil {
		return fmt.Errorf("grow %s to %d bytes: %w", m.path, size, err)
	}
	if err := unmapFile(m.data); err != nil {
		return fmt.Errorf("unmap %s: %w", m.path, err)
	}
	data, err := mapFile(m.f, size, true)
	if err != nil {
		m.data = nil
		return fmt.Errorf("remap %s: %w", m.path, err)
	}
	m.data = data
	return nil
}

// Write sets key to value with a write timestamp of now.
func (m *MappedFile) Write(key string, value float64) error {
	off, err := m.offset(key)
	if err != nil {
		return err
	}
	m.set(off, value)
	return nil
}

// Read returns the current value of key, zero when the key was never written.
func (m *MappedFile) Read(key string) float64 {
	m.mu.RLock()
	off, ok := m.positions[key]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	v, _ := m.load(off)
	return v
}

func (m *MappedFile) set(off int, value float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return
	}
	storeFloat(m.data, off, value)
	storeFloat(m.data, off+8, nowSeconds())
}

func (m *MappedFile) add(off int, delta float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return
	}
	w := word64(m.data, off)
	for {
		old := atomic.LoadUint64(w)
		next := le64(math.Float64bits(math.Float64frombits(le64(old)) + delta))
		if atomic.CompareAndSwapUint64(w, old, next) {
			break
		}
	}
	storeFloat(m.data, off+8, nowSeconds())
}

func (m *MappedFile) load(off int) (float64, float64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return 0, 0
	}
	return loadFloat(m.data, off), loadFloat(m.data, off+8)
}

// Keys returns the number of keys in the file.
func (m *MappedFile) Keys() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.positions)
}

// Close unmaps and closes the file. Later writes are dropped.
func (m *MappedFile) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		return nil
	}
	err := unmapFile(m.data)
	m.data = nil
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	return err
}
