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
	"errors"
	"fmt"

	log "github.com/golang/glog"
	"github.com/optsparse/optsparse/optsparse/go/internal/ordered"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	// ErrDivergentDeclaration holds the error when two ranks declare the same key with
	// different contents.
	ErrDivergentDeclaration = errors.New("consistency: same key declared differently on two ranks")
	// ErrRemote holds the error reported on every rank when another rank failed during
	// reconciliation.
	ErrRemote = errors.New("consistency: reconciliation failed on another rank")
)

const (
	entryTag       = 0
	fieldDivergent = "divergent"
)

// Reconcile merges the collections that every rank of `comm` declared locally and returns the
// merged collection, identical on every rank. It is a collective call.
//
// The root (coordinator) keeps its own entries first, in their declaration order. Every other
// key is owned by the lowest rank that declared it; those entries follow, ordered by owner rank
// and then by the owner's declaration order. Keys declared on several ranks must encode to the
// same Struct, otherwise every rank returns ErrDivergentDeclaration.
//
// With a single-rank communicator `local` is returned unchanged.
func Reconcile[T any](comm Communicator, root int, local *ordered.Map[T], codec Codec[T]) (*ordered.Map[T], error) {
	if comm.Size() == 1 {
		return local, nil
	}
	r := &reconciler[T]{comm: comm, root: root, codec: codec, encoded: make(map[string]*structpb.Struct)}
	return r.run(local)
}

type reconciler[T any] struct {
	comm    Communicator
	root    int
	codec   Codec[T]
	keys    []string
	encoded map[string]*structpb.Struct
	// localErr is the failure raised on this rank, if any.
	localErr error
}

func (r *reconciler[T]) run(local *ordered.Map[T]) (*ordered.Map[T], error) {
	// Step 1: gather keys and fingerprints on the root.
	fingerprints := r.encodeLocal(local)
	payload, err := marshal(keysMessage(r.keys, fingerprints, r.localErr))
	if err != nil {
		return nil, err
	}
	gathered, err := r.comm.Gather(payload, r.root)
	if err != nil {
		return nil, err
	}

	// Step 2: the root assigns every key it did not declare to the lowest rank declaring it.
	var ownersPayload []byte
	if r.comm.Rank() == r.root {
		owners, divergent, failure := r.assignOwners(gathered)
		msg := ownersMessage(owners, failure)
		if divergent {
			msg.Fields[fieldDivergent] = structpb.NewBoolValue(true)
		}
		if ownersPayload, err = marshal(msg); err != nil {
			return nil, err
		}
	}

	// Step 3: broadcast the ownership list.
	ownersPayload, err = r.comm.Bcast(ownersPayload, r.root)
	if err != nil {
		return nil, err
	}
	ownersMsg, err := unmarshal(ownersPayload)
	if err != nil {
		return nil, err
	}
	if err := r.failure(ownersMsg); err != nil {
		return nil, err
	}
	owners := decodeOwners(ownersMsg)

	// Step 4: owners send their entries to the root, which appends them in ownership order.
	var finalPayload []byte
	if r.comm.Rank() == r.root {
		if finalPayload, err = r.collect(owners); err != nil {
			return nil, err
		}
	} else {
		for _, o := range owners {
			if o.rank != r.comm.Rank() {
				continue
			}
			b, err := marshal(&structpb.Struct{Fields: map[string]*structpb.Value{
				fieldKey:   structpb.NewStringValue(o.key),
				fieldValue: structpb.NewStructValue(r.encoded[o.key]),
			}})
			if err != nil {
				return nil, err
			}
			if err := r.comm.Send(b, r.root, entryTag); err != nil {
				return nil, err
			}
		}
	}

	// Step 5: broadcast the merged collection; every rank replaces its own.
	finalPayload, err = r.comm.Bcast(finalPayload, r.root)
	if err != nil {
		return nil, err
	}
	finalMsg, err := unmarshal(finalPayload)
	if err != nil {
		return nil, err
	}
	if err := r.failure(finalMsg); err != nil {
		return nil, err
	}
	merged := ordered.New[T]()
	for _, v := range finalMsg.GetFields()[fieldEntries].GetListValue().GetValues() {
		key, s := decodeEntry(v)
		val, err := r.codec.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("decoding entry %q failed: %w", key, err)
		}
		merged.Set(key, val)
	}
	log.V(1).Infof("rank %d: reconciled %d local entries into %d", r.comm.Rank(), local.Len(), merged.Len())
	return merged, nil
}

// encodeLocal encodes every local entry and returns the fingerprints in key order. A failure is
// recorded in localErr and reported through the protocol so that no rank leaves it early.
func (r *reconciler[T]) encodeLocal(local *ordered.Map[T]) []string {
	var fingerprints []string
	local.Range(func(key string, v T) bool {
		s, err := r.codec.Encode(v)
		if err == nil {
			var fp string
			if fp, err = Fingerprint(s); err == nil {
				r.keys = append(r.keys, key)
				r.encoded[key] = s
				fingerprints = append(fingerprints, fp)
				return true
			}
		}
		r.localErr = fmt.Errorf("rank %d: encoding %q failed: %w", r.comm.Rank(), key, err)
		return false
	})
	return fingerprints
}

func (r *reconciler[T]) assignOwners(gathered [][]byte) (owners []owner, divergent bool, failure error) {
	type seen struct {
		rank        int
		fingerprint string
	}
	first := make(map[string]seen)
	// The root is visited first so that keys it declared are never transferred.
	order := []int{r.root}
	for rank := range gathered {
		if rank != r.root {
			order = append(order, rank)
		}
	}
	for _, rank := range order {
		msg, err := unmarshal(gathered[rank])
		if err != nil {
			return nil, false, fmt.Errorf("keys from rank %d: %w", rank, err)
		}
		if e := messageError(msg); e != "" {
			return nil, false, errors.New(e)
		}
		keys := Strings(msg.GetFields()[fieldKeys])
		fps := Strings(msg.GetFields()[fieldFingerprints])
		if len(keys) != len(fps) {
			return nil, false, fmt.Errorf("rank %d sent %d keys and %d fingerprints: %w", rank, len(keys), len(fps), ErrTransport)
		}
		for i, key := range keys {
			if s, ok := first[key]; ok {
				if s.fingerprint != fps[i] {
					return nil, true, fmt.Errorf("%q on ranks %d and %d", key, s.rank, rank)
				}
				continue
			}
			first[key] = seen{rank: rank, fingerprint: fps[i]}
			if rank != r.root {
				owners = append(owners, owner{key: key, rank: rank})
			}
		}
	}
	return owners, false, nil
}

// collect receives the owned entries on the root and returns the merged collection message. A
// failure is carried by the message so that every rank leaves the final broadcast.
func (r *reconciler[T]) collect(owners []owner) ([]byte, error) {
	entries := &structpb.ListValue{}
	for _, key := range r.keys {
		entries.Values = append(entries.Values, entryValue(key, r.encoded[key]))
	}
	var failure error
	for _, o := range owners {
		b, err := r.comm.Recv(o.rank, entryTag)
		if err != nil {
			failure = fmt.Errorf("receiving %q from rank %d failed: %w", o.key, o.rank, err)
			r.localErr = failure
			log.Errorf("rank %d: %v", r.comm.Rank(), failure)
			continue
		}
		msg, err := unmarshal(b)
		if err != nil {
			failure = fmt.Errorf("entry %q from rank %d: %w", o.key, o.rank, err)
			continue
		}
		key, s := msg.GetFields()[fieldKey].GetStringValue(), msg.GetFields()[fieldValue].GetStructValue()
		if key != o.key {
			failure = fmt.Errorf("rank %d sent %q, want %q: %w", o.rank, key, o.key, ErrTransport)
			continue
		}
		entries.Values = append(entries.Values, entryValue(key, s))
	}
	final := &structpb.Struct{Fields: map[string]*structpb.Value{fieldEntries: structpb.NewListValue(entries)}}
	setError(final, failure)
	return marshal(final)
}

// failure converts an error carried by a broadcast message into the error returned on this rank.
func (r *reconciler[T]) failure(msg *structpb.Struct) error {
	e := messageError(msg)
	if e == "" {
		return nil
	}
	var err error
	switch {
	case msg.GetFields()[fieldDivergent].GetBoolValue():
		err = fmt.Errorf("%s: %w", e, ErrDivergentDeclaration)
	case r.localErr != nil:
		err = r.localErr
	default:
		err = fmt.Errorf("%s: %w", e, ErrRemote)
	}
	log.Errorf("rank %d: %v", r.comm.Rank(), err)
	return err
}
