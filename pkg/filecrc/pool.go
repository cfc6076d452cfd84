package filecrc

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/charlievieth/utils/stm32crc/pkg/stm32crc"
)

type Outcome struct {
	Path   string
	Result *Result
	Err    error
}

type outcomeList struct {
	mu  sync.Mutex
	all []Outcome
}

func (l *outcomeList) Add(o Outcome) {
	l.mu.Lock()
	l.all = append(l.all, o)
	l.mu.Unlock()
}

func DefaultNumWorkers() int {
	numCPU := runtime.NumCPU()
	if numCPU < 4 {
		numCPU = 4
	}
	return numCPU
}

// A Pool checksums files in parallel. Each worker owns its Hasher, so the
// only state shared between workers is the result list.
type Pool struct {
	Workers int // DefaultNumWorkers if <= 0
	Log     *zap.Logger

	// NewHasher returns the Hasher of each worker. The zero Hasher is used
	// if nil.
	NewHasher func() *Hasher
}

type worker struct {
	h    *Hasher
	list *outcomeList
	log  *zap.Logger
	ctx  context.Context
}

func (w *worker) doWork(wg *sync.WaitGroup, ch <-chan string) {
	defer wg.Done()
	done := w.ctx.Done()
	for name := range ch {
		select {
		case <-done:
			w.list.Add(Outcome{Path: name, Err: w.ctx.Err()})
			continue
		default:
		}
		start := time.Now()
		res, err := w.h.File(name)
		if err != nil {
			w.log.Debug("checksum failed", zap.String("path", name), zap.Error(err))
		} else {
			w.log.Debug("checksum", zap.String("path", name),
				zap.Int64("size", res.Size), zap.Stringer("crc", crcStringer(res.CRC)),
				zap.Duration("duration", time.Since(start)))
		}
		w.list.Add(Outcome{Path: name, Result: res, Err: err})
	}
}

type crcStringer uint32

func (c crcStringer) String() string { return stm32crc.Format(uint32(c)) }

// Run checksums every path received from paths until it is closed and
// returns the outcomes sorted by path. Paths received after ctx is
// cancelled are reported with the context's error.
func (p *Pool) Run(ctx context.Context, paths <-chan string) []Outcome {
	n := p.Workers
	if n <= 0 {
		n = DefaultNumWorkers()
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	newHasher := p.NewHasher
	if newHasher == nil {
		newHasher = func() *Hasher { return new(Hasher) }
	}
	list := new(outcomeList)
	wg := new(sync.WaitGroup)
	for i := 0; i < n; i++ {
		wg.Add(1)
		w := &worker{h: newHasher(), list: list, log: log, ctx: ctx}
		go w.doWork(wg, paths)
	}
	wg.Wait()
	sort.Slice(list.all, func(i, j int) bool {
		return list.all[i].Path < list.all[j].Path
	})
	return list.all
}
