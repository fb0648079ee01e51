// Runtime profiling: ProfCPU/ProfHeap/ProfThread/ProfGoroutine/ProfBlock
// dump runtime/pprof profiles to fixed file paths on demand rather than
// serving them over HTTP, so triggering one doesn't require exposing an
// admin port. A Profiler's methods are exported for the embedding
// program's own signal handler to call directly.
package engine

import (
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"time"
)

// profileDuration is how long ProfCPU/ProfBlock sample for.
const profileDuration = 5 * time.Second

// Profiler writes runtime/pprof profiles to the files named in
// ProfilingSection. A nil *Profiler is valid and every method is a no-op,
// so call sites never need a nil check before wiring it into a signal
// handler.
type Profiler struct {
	cpuFile, heapFile, threadFile, goroutineFile, blockFile string
}

// NewProfiler builds a Profiler from cfg, creating the parent directory of
// each profile file up front so a later os.Create can't fail on a missing
// directory mid-profile. It returns nil when cfg.Enable is false.
func NewProfiler(cfg ProfilingSection) (*Profiler, error) {
	if !cfg.Enable {
		return nil, nil
	}
	p := &Profiler{
		cpuFile:       cfg.CPUFile,
		heapFile:      cfg.HeapFile,
		threadFile:    cfg.ThreadFile,
		goroutineFile: cfg.GoroutineFile,
		blockFile:     cfg.BlockFile,
	}
	for _, file := range []string{p.cpuFile, p.heapFile, p.threadFile, p.goroutineFile, p.blockFile} {
		if file == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			return nil, NewError(KindConfiguration, "profiler.prepare", err)
		}
	}
	return p, nil
}

// ProfCPU samples CPU usage for profileDuration and writes it to cpuFile.
// It blocks for the duration of the sample; callers normally run it in its
// own goroutine.
func (p *Profiler) ProfCPU() error {
	if p == nil {
		return nil
	}
	file, err := os.Create(p.cpuFile)
	if err != nil {
		return NewError(KindConfiguration, "profiler.cpu", err)
	}
	defer file.Close()
	if err := pprof.StartCPUProfile(file); err != nil {
		return NewError(KindConfiguration, "profiler.cpu", err)
	}
	time.Sleep(profileDuration)
	pprof.StopCPUProfile()
	return nil
}

// ProfHeap forces two GCs around a heap snapshot so short-lived garbage
// from the request that triggered profiling doesn't skew the sample.
func (p *Profiler) ProfHeap() error {
	if p == nil {
		return nil
	}
	file, err := os.Create(p.heapFile)
	if err != nil {
		return NewError(KindConfiguration, "profiler.heap", err)
	}
	defer file.Close()
	runtime.GC()
	time.Sleep(profileDuration)
	runtime.GC()
	return pprof.Lookup("heap").WriteTo(file, 1)
}

func (p *Profiler) ProfThread() error {
	if p == nil {
		return nil
	}
	file, err := os.Create(p.threadFile)
	if err != nil {
		return NewError(KindConfiguration, "profiler.thread", err)
	}
	defer file.Close()
	time.Sleep(profileDuration)
	return pprof.Lookup("threadcreate").WriteTo(file, 1)
}

func (p *Profiler) ProfGoroutine() error {
	if p == nil {
		return nil
	}
	file, err := os.Create(p.goroutineFile)
	if err != nil {
		return NewError(KindConfiguration, "profiler.goroutine", err)
	}
	defer file.Close()
	return pprof.Lookup("goroutine").WriteTo(file, 2)
}

// ProfBlock enables block-profiling, samples for profileDuration, then
// disables it again; block profiling has a measurable steady-state cost so
// it only stays on for the sample window.
func (p *Profiler) ProfBlock() error {
	if p == nil {
		return nil
	}
	file, err := os.Create(p.blockFile)
	if err != nil {
		return NewError(KindConfiguration, "profiler.block", err)
	}
	defer file.Close()
	runtime.SetBlockProfileRate(1)
	time.Sleep(profileDuration)
	err = pprof.Lookup("block").WriteTo(file, 1)
	runtime.SetBlockProfileRate(0)
	return err
}
