package service

import (
	"sync"

	"github.com/todoshare/server-go/internal/util"
)

// DemoState backs the counter and URL-shortener demo endpoints. It is
// deliberately in-memory only: restarts reset it, which the demo pages
// call out.
type DemoState struct {
	mu        sync.Mutex
	counter   int64
	shortURLs map[string]string
}

func NewDemoState() *DemoState {
	return &DemoState{shortURLs: make(map[string]string)}
}

func (d *DemoState) Increment() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counter++
	return d.counter
}

func (d *DemoState) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counter = 0
}

func (d *DemoState) Counter() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counter
}

// Shorten registers a URL under a fresh 6-character code and returns the
// code.
func (d *DemoState) Shorten(longURL string) (string, error) {
	code, err := util.RandomString(3)
	if err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.shortURLs[code] = longURL
	return code, nil
}

func (d *DemoState) Resolve(code string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	longURL, ok := d.shortURLs[code]
	return longURL, ok
}
