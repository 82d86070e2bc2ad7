// Package journal keeps an append-only JSONL trail of a match.
package journal

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	BufferSize       = 1024                   // Circular buffer size
	MaxEntriesPerSec = 2000                   // Global rate limit
	MaxPerKindPerSec = 600                    // Per-kind rate limit per second
	BatchFlushSize   = 64                     // Entries per batch write
	FlushInterval    = 100 * time.Millisecond // How often to flush
)

// Entry is one journal line.
type Entry struct {
	Seq     uint64    `json:"seq"`
	Frame   int       `json:"frame"`
	Kind    string    `json:"kind"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload,omitempty"`
}

// Journal is a bounded, rate-limited writer. Record never blocks the
// simulation: when the buffer is full the oldest pending entry is dropped.
type Journal struct {
	buffer    [BufferSize]Entry
	writeHead uint64 // atomic
	readHead  uint64 // atomic

	globalLimiter *rate.Limiter
	kindLimiters  sync.Map // map[string]*rate.Limiter

	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	file   *os.File
	fileMu sync.Mutex

	dropped uint64 // atomic
	total   uint64 // atomic
	written uint64 // atomic
}

func New() *Journal {
	return &Journal{
		globalLimiter: rate.NewLimiter(MaxEntriesPerSec, MaxEntriesPerSec/10),
		stopChan:      make(chan struct{}),
	}
}

// Start opens path for append and begins the writer goroutine. An empty
// path keeps entries in memory only, which is useful for stats.
func (j *Journal) Start(path string) error {
	if j.running.Load() {
		return nil
	}

	if path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		j.file = file
	}

	j.running.Store(true)
	j.writerWg.Add(1)
	go j.writerLoop()
	return nil
}

// Stop flushes what is pending and closes the file.
func (j *Journal) Stop() {
	j.stopOnce.Do(func() {
		j.running.Store(false)
		close(j.stopChan)
		j.writerWg.Wait()

		j.fileMu.Lock()
		if j.file != nil {
			j.file.Close()
		}
		j.fileMu.Unlock()
	})
}

// Record queues an entry. It returns false when the journal is stopped or
// the entry was rate limited.
func (j *Journal) Record(frame int, kind string, payload any) bool {
	if !j.running.Load() {
		return false
	}

	if !j.kindLimiter(kind).Allow() || !j.globalLimiter.Allow() {
		atomic.AddUint64(&j.dropped, 1)
		return false
	}

	head := atomic.AddUint64(&j.writeHead, 1)
	tail := atomic.LoadUint64(&j.readHead)
	if head-tail >= BufferSize {
		atomic.AddUint64(&j.readHead, 1)
		atomic.AddUint64(&j.dropped, 1)
	}

	j.buffer[head%BufferSize] = Entry{
		Seq:     head,
		Frame:   frame,
		Kind:    kind,
		Time:    time.Now().UTC(),
		Payload: payload,
	}
	atomic.AddUint64(&j.total, 1)
	return true
}

func (j *Journal) kindLimiter(kind string) *rate.Limiter {
	if l, ok := j.kindLimiters.Load(kind); ok {
		return l.(*rate.Limiter)
	}
	l, _ := j.kindLimiters.LoadOrStore(kind, rate.NewLimiter(MaxPerKindPerSec, MaxPerKindPerSec/10))
	return l.(*rate.Limiter)
}

func (j *Journal) writerLoop() {
	defer j.writerWg.Done()

	ticker := time.NewTicker(FlushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, BatchFlushSize)
	for {
		select {
		case <-j.stopChan:
			// Drain everything on the way out.
			for {
				batch = j.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				j.flushBatch(batch)
			}
		case <-ticker.C:
			batch = j.collectBatch(batch[:0])
			if len(batch) > 0 {
				j.flushBatch(batch)
			}
		}
	}
}

// collectBatch reads available entries from the circular buffer.
func (j *Journal) collectBatch(batch []Entry) []Entry {
	head := atomic.LoadUint64(&j.writeHead)
	tail := atomic.LoadUint64(&j.readHead)

	// Sequence numbers start at 1.
	for i := tail + 1; i <= head && len(batch) < BatchFlushSize; i++ {
		batch = append(batch, j.buffer[i%BufferSize])
	}
	if len(batch) > 0 {
		atomic.AddUint64(&j.readHead, uint64(len(batch)))
	}
	return batch
}

// flushBatch appends entries as newline-delimited JSON.
func (j *Journal) flushBatch(batch []Entry) {
	j.fileMu.Lock()
	defer j.fileMu.Unlock()

	if j.file == nil {
		return
	}
	for _, e := range batch {
		data, err := json.Marshal(e)
		if err != nil {
			atomic.AddUint64(&j.dropped, 1)
			continue
		}
		data = append(data, '\n')
		if _, err := j.file.Write(data); err != nil {
			atomic.AddUint64(&j.dropped, 1)
			continue
		}
		atomic.AddUint64(&j.written, 1)
	}
}

// Stats reports counters for monitoring.
func (j *Journal) Stats() map[string]interface{} {
	head := atomic.LoadUint64(&j.writeHead)
	tail := atomic.LoadUint64(&j.readHead)

	return map[string]interface{}{
		"total":   atomic.LoadUint64(&j.total),
		"written": atomic.LoadUint64(&j.written),
		"dropped": atomic.LoadUint64(&j.dropped),
		"pending": head - tail,
		"running": j.running.Load(),
	}
}

func (j *Journal) Dropped() uint64 {
	return atomic.LoadUint64(&j.dropped)
}
