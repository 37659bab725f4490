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

	"github.com/cespare/xxhash/v2"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Codec converts collection values to and from the protobuf Struct sent between ranks.
// Encode must be deterministic: equal values must produce equal structs.
type Codec[T any] interface {
	Encode(v T) (*structpb.Struct, error)
	Decode(s *structpb.Struct) (T, error)
}

// Field names of the protocol messages.
const (
	fieldKeys         = "keys"
	fieldFingerprints = "fingerprints"
	fieldOwners       = "owners"
	fieldRank         = "rank"
	fieldKey          = "key"
	fieldValue        = "value"
	fieldEntries      = "entries"
	fieldError        = "error"
)

func marshal(s *structpb.Struct) ([]byte, error) {
	b, err := proto.MarshalOptions{Deterministic: true}.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshaling message failed: %w", err)
	}
	return b, nil
}

func unmarshal(b []byte) (*structpb.Struct, error) {
	s := &structpb.Struct{}
	if err := proto.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("unmarshaling message failed: %w: %w", err, ErrTransport)
	}
	return s, nil
}

// Fingerprint returns a digest of the deterministic encoding of `s`.
func Fingerprint(s *structpb.Struct) (string, error) {
	b, err := marshal(s)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(b)), nil
}

// NumberList returns `vs` as a protobuf list value.
func NumberList(vs []float64) *structpb.Value {
	l := &structpb.ListValue{Values: make([]*structpb.Value, len(vs))}
	for i, v := range vs {
		l.Values[i] = structpb.NewNumberValue(v)
	}
	return structpb.NewListValue(l)
}

// IntList returns `vs` as a protobuf list value.
func IntList(vs []int) *structpb.Value {
	l := &structpb.ListValue{Values: make([]*structpb.Value, len(vs))}
	for i, v := range vs {
		l.Values[i] = structpb.NewNumberValue(float64(v))
	}
	return structpb.NewListValue(l)
}

// StringList returns `vs` as a protobuf list value.
func StringList(vs []string) *structpb.Value {
	l := &structpb.ListValue{Values: make([]*structpb.Value, len(vs))}
	for i, v := range vs {
		l.Values[i] = structpb.NewStringValue(v)
	}
	return structpb.NewListValue(l)
}

// Numbers returns the numbers of a list value.
func Numbers(v *structpb.Value) []float64 {
	vals := v.GetListValue().GetValues()
	out := make([]float64, len(vals))
	for i, e := range vals {
		out[i] = e.GetNumberValue()
	}
	return out
}

// Ints returns the numbers of a list value as ints.
func Ints(v *structpb.Value) []int {
	vals := v.GetListValue().GetValues()
	out := make([]int, len(vals))
	for i, e := range vals {
		out[i] = int(e.GetNumberValue())
	}
	return out
}

// Strings returns the strings of a list value.
func Strings(v *structpb.Value) []string {
	vals := v.GetListValue().GetValues()
	out := make([]string, len(vals))
	for i, e := range vals {
		out[i] = e.GetStringValue()
	}
	return out
}

type owner struct {
	key  string
	rank int
}

func keysMessage(keys, fingerprints []string, failure error) *structpb.Struct {
	s := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldKeys:         StringList(keys),
		fieldFingerprints: StringList(fingerprints),
	}}
	setError(s, failure)
	return s
}

func ownersMessage(owners []owner, failure error) *structpb.Struct {
	l := &structpb.ListValue{}
	for _, o := range owners {
		l.Values = append(l.Values, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			fieldKey:  structpb.NewStringValue(o.key),
			fieldRank: structpb.NewNumberValue(float64(o.rank)),
		}}))
	}
	s := &structpb.Struct{Fields: map[string]*structpb.Value{fieldOwners: structpb.NewListValue(l)}}
	setError(s, failure)
	return s
}

func decodeOwners(s *structpb.Struct) []owner {
	var owners []owner
	for _, v := range s.GetFields()[fieldOwners].GetListValue().GetValues() {
		f := v.GetStructValue().GetFields()
		owners = append(owners, owner{key: f[fieldKey].GetStringValue(), rank: int(f[fieldRank].GetNumberValue())})
	}
	return owners
}

func entryValue(key string, value *structpb.Struct) *structpb.Value {
	return structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
		fieldKey:   structpb.NewStringValue(key),
		fieldValue: structpb.NewStructValue(value),
	}})
}

func decodeEntry(v *structpb.Value) (string, *structpb.Struct) {
	f := v.GetStructValue().GetFields()
	return f[fieldKey].GetStringValue(), f[fieldValue].GetStructValue()
}

func setError(s *structpb.Struct, failure error) {
	if failure != nil {
		s.Fields[fieldError] = structpb.NewStringValue(failure.Error())
	}
}

func messageError(s *structpb.Struct) string {
	return s.GetFields()[fieldError].GetStringValue()
}
