package utils

import "sync"

// Subprocesses tracks background goroutines so they can be waited on at
// shutdown.
type Subprocesses struct {
	wg sync.WaitGroup
}

func (s *Subprocesses) Go(f func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		f()
	}()
}

func (s *Subprocesses) Wait() {
	s.wg.Wait()
}
