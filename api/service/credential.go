package service

import (
	"errors"
	"strings"
	"sync"
)

var ErrEmptyCredential = errors.New("api key must not be empty")

// Credentials holds the default generation key copied into each new task.
// Tasks never read it after creation.
type Credentials struct {
	mu  sync.RWMutex
	key string
}

func NewCredentials(initial string) *Credentials {
	return &Credentials{key: strings.TrimSpace(initial)}
}

func (c *Credentials) Set(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyCredential
	}
	c.mu.Lock()
	c.key = key
	c.mu.Unlock()
	return nil
}

func (c *Credentials) Current() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.key
}
