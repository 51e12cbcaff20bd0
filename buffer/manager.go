// Package buffer implements the buffer pool manager (spec §4.2): a
// fixed-capacity cache of pages, shared across every file the engine
// touches, with pin/unpin lifecycle, LRU eviction and dirty write-back.
//
// This is a direct generalisation of the teacher's buffer.BufferManager
// (container/list-based LRU, a lookup map from page key to list element,
// a fixed slice of frames) to the multi-file shape spec §4.2 requires: the
// teacher keyed frames by a single-file config.PageId, this keys them by
// (file name, page id) so one pool can mediate Movies, WorkedOn, People,
// the title index and the temp projection file at once.
package buffer

import (
	"container/list"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jgodjo/imdbdb/config"
	"github.com/jgodjo/imdbdb/diskio"
)

// Frame is a buffer pool frame: one cache slot holding one page and its
// bookkeeping (spec §3 "Buffer frame").
type Frame struct {
	File     string
	PageId   int
	Data     []byte
	PinCount int
	Dirty    bool
}

type frameKey struct {
	file   string
	pageId int
}

// Manager is the buffer pool. It is the only shared resource operators are
// allowed to touch pages through (spec §5).
type Manager struct {
	dio *diskio.Manager
	log *logrus.Logger

	mu      sync.Mutex
	frames  []*Frame
	lookup  map[frameKey]*list.Element
	repl    *list.List // front = least-recently-used
	nextPid map[string]int
}

// NewManager creates a buffer pool of the given capacity (number of
// frames) over dio.
func NewManager(dio *diskio.Manager, bufferCount int, log *logrus.Logger) *Manager {
	if log == nil {
		log = logrus.New()
	}
	frames := make([]*Frame, bufferCount)
	for i := range frames {
		frames[i] = &Frame{File: "", PageId: -1, Data: make([]byte, config.PageSize)}
	}
	return &Manager{
		dio:     dio,
		log:     log,
		frames:  frames,
		lookup:  make(map[frameKey]*list.Element),
		repl:    list.New(),
		nextPid: make(map[string]int),
	}
}

func (m *Manager) nextPageId(file string) (int, error) {
	if n, ok := m.nextPid[file]; ok {
		return n, nil
	}
	n, err := m.dio.HighWaterPageCount(file)
	if err != nil {
		return 0, err
	}
	m.nextPid[file] = n
	return n, nil
}

// GetPage returns the page identified by (file, pageId), pinned. It
// returns (nil, nil) when pageId is beyond the file's high-water mark or
// when no frame could be freed for the fetch (spec §4.2).
func (m *Manager) GetPage(file string, pageId int) (*Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := frameKey{file, pageId}
	if el, ok := m.lookup[key]; ok {
		m.repl.MoveToBack(el)
		fr := el.Value.(*Frame)
		fr.PinCount++
		return fr, nil
	}

	raw, err := m.dio.ReadPage(file, pageId)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil // beyond high-water mark: end-of-file, not an error
	}

	fr, err := m.acquireFrame()
	if err != nil {
		return nil, err
	}
	if fr == nil {
		return nil, nil // no victim available
	}
	copy(fr.Data, raw)
	fr.File = file
	fr.PageId = pageId
	fr.PinCount = 1
	fr.Dirty = false
	m.installFrame(fr, key)
	return fr, nil
}

// CreatePage allocates the next page id for file and installs a fresh,
// zeroed page into a frame, pinned. Returns (nil, nil) if no frame could
// be freed.
func (m *Manager) CreatePage(file string) (*Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pid, err := m.nextPageId(file)
	if err != nil {
		return nil, err
	}

	fr, err := m.acquireFrame()
	if err != nil {
		return nil, err
	}
	if fr == nil {
		return nil, nil
	}
	for i := range fr.Data {
		fr.Data[i] = 0
	}
	fr.File = file
	fr.PageId = pid
	fr.PinCount = 1
	fr.Dirty = true // a created page is conceptually part of the file before flush
	m.installFrame(fr, frameKey{file, pid})
	m.nextPid[file] = pid + 1
	return fr, nil
}

// acquireFrame finds an empty frame, or evicts the least-recently-used
// unpinned one, writing it back first if dirty. It does not install the
// frame into lookup/repl — callers do that via installFrame once they
// know the (file, pageId) they're installing.
func (m *Manager) acquireFrame() (*Frame, error) {
	for _, f := range m.frames {
		if f.PinCount == 0 && f.PageId == -1 {
			return f, nil
		}
	}

	for el := m.repl.Front(); el != nil; el = el.Next() {
		victim := el.Value.(*Frame)
		if victim.PinCount != 0 {
			continue
		}
		if victim.Dirty {
			if err := m.dio.WritePage(victim.File, victim.PageId, victim.Data); err != nil {
				return nil, err
			}
			victim.Dirty = false
		}
		delete(m.lookup, frameKey{victim.File, victim.PageId})
		m.repl.Remove(el)
		return victim, nil
	}
	m.log.WithField("component", "buffer").Warn("no unpinned frame available for eviction")
	return nil, nil
}

func (m *Manager) installFrame(fr *Frame, key frameKey) {
	el := m.repl.PushBack(fr)
	m.lookup[key] = el
}

// MarkDirty sets the dirty flag on the resident frame for (file, pageId).
// A no-op if the page is not resident.
func (m *Manager) MarkDirty(file string, pageId int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.lookup[frameKey{file, pageId}]; ok {
		el.Value.(*Frame).Dirty = true
	}
}

// UnpinPage decrements the pin count for (file, pageId), saturating at
// zero. A no-op (not an error) if the page is not resident, to
// accommodate late callers (spec §4.2).
func (m *Manager) UnpinPage(file string, pageId int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.lookup[frameKey{file, pageId}]
	if !ok {
		return
	}
	fr := el.Value.(*Frame)
	if fr.PinCount > 0 {
		fr.PinCount--
	}
}

// Force writes every dirty resident frame belonging to file back to disk
// and clears its dirty flag.
func (m *Manager) Force(file string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.frames {
		if f.PageId == -1 || f.File != file || !f.Dirty {
			continue
		}
		if err := m.dio.WritePage(f.File, f.PageId, f.Data); err != nil {
			return err
		}
		f.Dirty = false
	}
	return nil
}

// FreeUpSpace is a safety valve (spec §5): it forcibly unpins every frame
// and flushes dirty ones. In a correctly behaved pipeline it should never
// be necessary; it exists to let a caller recover from a leaked pin.
func (m *Manager) FreeUpSpace() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.WithField("component", "buffer").Warn("FreeUpSpace invoked: zeroing pin counts")
	for _, f := range m.frames {
		if f.PageId == -1 {
			continue
		}
		if f.Dirty {
			if err := m.dio.WritePage(f.File, f.PageId, f.Data); err != nil {
				return err
			}
			f.Dirty = false
		}
		f.PinCount = 0
	}
	return nil
}

// AggressiveCleanup flushes and evicts every resident frame unconditionally,
// regardless of pin count. Another safety valve (spec §5); never required
// by a correct caller.
func (m *Manager) AggressiveCleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.WithField("component", "buffer").Warn("AggressiveCleanup invoked: evicting all frames")
	var firstErr error
	for _, f := range m.frames {
		if f.PageId == -1 {
			continue
		}
		if f.Dirty {
			if err := m.dio.WritePage(f.File, f.PageId, f.Data); err != nil && firstErr == nil {
				firstErr = err
			}
			f.Dirty = false
		}
		f.File = ""
		f.PageId = -1
		f.PinCount = 0
	}
	m.lookup = make(map[frameKey]*list.Element)
	m.repl.Init()
	return firstErr
}

// ErrNoVictim is returned by callers that choose to treat a nil-frame
// result from GetPage/CreatePage as fatal (spec §7 BufferExhausted).
var ErrNoVictim = errors.New("buffer: no unpinnable frame available")
