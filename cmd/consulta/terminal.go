package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// terminal is the CLI rendition of the form's toasts, router and window.open.
type terminal struct {
	mu     sync.Mutex
	out    io.Writer
	err    io.Writer
	logger zerolog.Logger
	failed bool
}

func (t *terminal) Success(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.out, "✔ %s\n", msg)
}

func (t *terminal) Error(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed = true
	fmt.Fprintf(t.err, "✖ %s\n", msg)
}

func (t *terminal) Navigate(route string) {
	t.logger.Debug().Str("route", route).Msg("navigate")
}

func (t *terminal) Open(link string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.out, "WhatsApp: %s\n", link)
	return err
}

func (t *terminal) reported() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed
}
