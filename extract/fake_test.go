package extract

import (
	"context"
	"errors"
	"sync"
)

// fakePage maps selectors to what the page would return.
type fakePage struct {
	text  map[string][]string
	attrs map[string][]string
	frame map[string][]string
}

type fakeBrowser struct {
	page       fakePage
	sessionErr error
	navErr     error

	mu       sync.Mutex
	sessions []*fakeSession
}

func (b *fakeBrowser) NewSession(_ context.Context) (Session, error) {
	if b.sessionErr != nil {
		return nil, b.sessionErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &fakeSession{page: b.page, navErr: b.navErr}
	b.sessions = append(b.sessions, s)
	return s, nil
}

func (b *fakeBrowser) open() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, s := range b.sessions {
		if !s.closed {
			n++
		}
	}
	return n
}

type fakeSession struct {
	page   fakePage
	navErr error

	visited     string
	clicked     []string
	screenshots []string
	closed      bool
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.visited = url
	return s.navErr
}

func (s *fakeSession) WaitVisible(_ context.Context, selector string) error {
	if _, ok := s.page.text[selector]; ok {
		return nil
	}
	return errors.New("timeout waiting for " + selector)
}

func (s *fakeSession) Click(_ context.Context, selector string) error {
	s.clicked = append(s.clicked, selector)
	if _, ok := s.page.text[selector]; ok {
		return nil
	}
	return errNoMatch
}

func (s *fakeSession) Text(_ context.Context, selector string) ([]string, error) {
	if v, ok := s.page.text[selector]; ok {
		return v, nil
	}
	return nil, errNoMatch
}

func (s *fakeSession) Attribute(_ context.Context, selector string, _ ...string) ([]string, error) {
	if v, ok := s.page.attrs[selector]; ok {
		return v, nil
	}
	return nil, errNoMatch
}

func (s *fakeSession) FrameText(_ context.Context, frame, selector string) ([]string, error) {
	if v, ok := s.page.frame[frame+" "+selector]; ok {
		return v, nil
	}
	return nil, errNoMatch
}

func (s *fakeSession) Screenshot(_ context.Context, path string) error {
	s.screenshots = append(s.screenshots, path)
	return errors.New("screenshots are not supported by the fake")
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}
