package httpserver

import (
	"os"

	"github.com/shirou/gopsutil/v3/process"
)

// selfHealth wraps the current process's gopsutil handle for the
// /debug/health route's RSS and open-fd counts.
type selfHealth struct {
	proc *process.Process
}

func selfProcess() (*selfHealth, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &selfHealth{proc: p}, nil
}

func (s *selfHealth) rssBytes() (uint64, error) {
	mem, err := s.proc.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return mem.RSS, nil
}

func (s *selfHealth) openFDs() (int32, error) {
	return s.proc.NumFDs()
}
