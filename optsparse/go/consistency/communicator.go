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

// Package consistency reconciles ordered collections declared independently by cooperating
// processes into one identical collection on every process.
//
// The processes talk through a `Communicator`, a minimal message-passing interface with
// gather, broadcast and point-to-point operations. `NewLocalGroup` provides an in-process
// implementation in which each rank is a goroutine; a multi-process transport only has to
// implement the same interface.
//
// Every method of a Communicator blocks. Collective operations (Gather, Bcast, and therefore
// Reconcile) must be called by every rank of the group in the same order; a rank that skips a
// collective call deadlocks the group.
package consistency

import (
	"errors"
	"fmt"
)

// ErrTransport holds the error when a message cannot be delivered.
var ErrTransport = errors.New("consistency: transport failure")

// Communicator exchanges byte payloads between the ranks of a fixed group.
type Communicator interface {
	// Rank returns the rank of the caller in [0, Size()).
	Rank() int
	// Size returns the number of ranks in the group.
	Size() int
	// Gather collects one payload from every rank on `root`. The root receives the payloads
	// indexed by rank; the other ranks receive nil.
	Gather(payload []byte, root int) ([][]byte, error)
	// Bcast sends the root's payload to every rank and returns it. The payload of non-root
	// ranks is ignored.
	Bcast(payload []byte, root int) ([]byte, error)
	// Send delivers a payload to `dest` under a non-negative `tag`.
	Send(payload []byte, dest, tag int) error
	// Recv returns the next payload sent by `source` under `tag`.
	Recv(source, tag int) ([]byte, error)
}

type self struct{}

// Self returns the communicator of a group containing only the calling process.
func Self() Communicator {
	return self{}
}

func (self) Rank() int { return 0 }
func (self) Size() int { return 1 }

func (self) Gather(payload []byte, root int) ([][]byte, error) {
	if root != 0 {
		return nil, fmt.Errorf("root %d in a group of 1: %w", root, ErrTransport)
	}
	return [][]byte{payload}, nil
}

func (self) Bcast(payload []byte, root int) ([]byte, error) {
	if root != 0 {
		return nil, fmt.Errorf("root %d in a group of 1: %w", root, ErrTransport)
	}
	return payload, nil
}

func (self) Send(payload []byte, dest, tag int) error {
	return fmt.Errorf("send to rank %d in a group of 1: %w", dest, ErrTransport)
}

func (self) Recv(source, tag int) ([]byte, error) {
	return nil, fmt.Errorf("receive from rank %d in a group of 1: %w", source, ErrTransport)
}
