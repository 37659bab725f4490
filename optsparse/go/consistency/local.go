// Copyright 2010-2024 Google LLC
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package consistency

import (
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Tags below zero are reserved for collective operations.
const (
	gatherTag = -1
	bcastTag  = -2
)

type mailboxKey struct {
	src, dst, tag int
}

// mailbox is an unbounded FIFO queue, so senders never block.
type mailbox struct {
	mu    sync.Mutex
	cond  *sync.Cond
	queue [][]byte
}

func newMailbox() *mailbox {
	b := &mailbox{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *mailbox) push(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, p)
	b.cond.Signal()
}

func (b *mailbox) pop() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.queue) == 0 {
		b.cond.Wait()
	}
	p := b.queue[0]
	b.queue = b.queue[1:]
	return p
}

type localGroup struct {
	size  int
	mu    sync.Mutex
	boxes map[mailboxKey]*mailbox // Guarded by mu.
}

func (g *localGroup) box(k mailboxKey) *mailbox {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.boxes[k]
	if !ok {
		b = newMailbox()
		g.boxes[k] = b
	}
	return b
}

type localComm struct {
	rank int
	g    *localGroup
}

// NewLocalGroup returns the `n` communicators of an in-process group. Communicator i has rank
// i. Each communicator must be used by a single goroutine at a time.
func NewLocalGroup(n int) []Communicator {
	g := &localGroup{size: n, boxes: make(map[mailboxKey]*mailbox)}
	comms := make([]Communicator, n)
	for i := range comms {
		comms[i] = &localComm{rank: i, g: g}
	}
	return comms
}

// Run executes `fn` concurrently on every rank of a new in-process group of `n` ranks and
// returns the first error.
func Run(n int, fn func(comm Communicator) error) error {
	var g errgroup.Group
	for _, c := range NewLocalGroup(n) {
		c := c
		g.Go(func() error {
			return fn(c)
		})
	}
	return g.Wait()
}

func (c *localComm) Rank() int { return c.rank }
func (c *localComm) Size() int { return c.g.size }

func (c *localComm) checkRank(r int) error {
	if r < 0 || r >= c.g.size {
		return fmt.Errorf("rank %d in a group of %d: %w", r, c.g.size, ErrTransport)
	}
	return nil
}

func (c *localComm) send(payload []byte, dest, tag int) error {
	if err := c.checkRank(dest); err != nil {
		return err
	}
	c.g.box(mailboxKey{src: c.rank, dst: dest, tag: tag}).push(append([]byte(nil), payload...))
	return nil
}

func (c *localComm) recv(source, tag int) ([]byte, error) {
	if err := c.checkRank(source); err != nil {
		return nil, err
	}
	return c.g.box(mailboxKey{src: source, dst: c.rank, tag: tag}).pop(), nil
}

func (c *localComm) Send(payload []byte, dest, tag int) error {
	if tag < 0 {
		return fmt.Errorf("negative tag %d: %w", tag, ErrTransport)
	}
	return c.send(payload, dest, tag)
}

func (c *localComm) Recv(source, tag int) ([]byte, error) {
	if tag < 0 {
		return nil, fmt.Errorf("negative tag %d: %w", tag, ErrTransport)
	}
	return c.recv(source, tag)
}

func (c *localComm) Gather(payload []byte, root int) ([][]byte, error) {
	if err := c.checkRank(root); err != nil {
		return nil, err
	}
	if c.rank != root {
		return nil, c.send(payload, root, gatherTag)
	}
	all := make([][]byte, c.g.size)
	all[root] = append([]byte(nil), payload...)
	for r := 0; r < c.g.size; r++ {
		if r == root {
			continue
		}
		p, err := c.recv(r, gatherTag)
		if err != nil {
			return nil, err
		}
		all[r] = p
	}
	return all, nil
}

func (c *localComm) Bcast(payload []byte, root int) ([]byte, error) {
	if err := c.checkRank(root); err != nil {
		return nil, err
	}
	if c.rank != root {
		return c.recv(root, bcastTag)
	}
	for r := 0; r < c.g.size; r++ {
		if r == root {
			continue
		}
		if err := c.send(payload, r, bcastTag); err != nil {
			return nil, err
		}
	}
	return payload, nil
}
