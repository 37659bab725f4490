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

// The distributed command declares one problem from several in-process ranks, each rank adding
// its own constraint, and prints the merged problem seen by every rank.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/optsparse/optsparse/optsparse/go/consistency"
	"github.com/optsparse/optsparse/optsparse/go/nlpmodel"
	"gonum.org/v1/gonum/mat"
)

var (
	ranks       = flag.Int("ranks", 3, "number of cooperating ranks")
	coordinator = flag.Int("coordinator", 0, "rank merging the declarations")
)

func declare(comm consistency.Communicator) (*nlpmodel.Problem, error) {
	p := nlpmodel.NewProblem("distributed", nlpmodel.WithCommunicator(comm), nlpmodel.WithCoordinator(*coordinator))
	// Every rank declares the shared design variables identically.
	if _, err := p.AddVarGroup("x", 2, nlpmodel.VarParams{Lower: []float64{-10}, Upper: []float64{10}}); err != nil {
		return nil, err
	}
	// Each rank owns one extra variable, in a set of its own.
	own := fmt.Sprintf("y%d", comm.Rank())
	if _, err := p.AddVar(own, nlpmodel.VarParams{Value: []float64{float64(comm.Rank())}}); err != nil {
		return nil, err
	}
	if _, err := p.AddObj("obj"); err != nil {
		return nil, err
	}
	if err := p.FinalizeVariables(); err != nil {
		return nil, err
	}

	con := fmt.Sprintf("con%c", 'A'+comm.Rank())
	if _, err := p.AddCon(con, nlpmodel.ConParams{Upper: []float64{float64(comm.Rank())}, Wrt: []string{"x"}}); err != nil {
		return nil, err
	}
	if comm.Rank() == 0 {
		if _, err := p.AddCon("budget", nlpmodel.ConParams{
			Upper:  []float64{1},
			Linear: true,
			Jac:    map[string]mat.Matrix{"x": mat.NewDense(1, 2, []float64{1, 1})},
		}); err != nil {
			return nil, err
		}
	}
	if err := p.FinalizeConstraints(); err != nil {
		return nil, err
	}
	return p, nil
}

func distributed() error {
	if *ranks < 1 || *coordinator < 0 || *coordinator >= *ranks {
		return fmt.Errorf("coordinator %d out of %d ranks", *coordinator, *ranks)
	}
	summaries := make([]string, *ranks)
	err := consistency.Run(*ranks, func(comm consistency.Communicator) error {
		p, err := declare(comm)
		if err != nil {
			return fmt.Errorf("rank %d: %w", comm.Rank(), err)
		}
		var b strings.Builder
		if err := p.WriteSparsity(&b); err != nil {
			return err
		}
		summaries[comm.Rank()] = p.String() + b.String()
		return nil
	})
	if err != nil {
		return err
	}
	for r, s := range summaries {
		if s != summaries[0] {
			return fmt.Errorf("rank %d sees a different problem than rank 0", r)
		}
	}
	_, err = os.Stdout.WriteString(summaries[0])
	return err
}

func main() {
	flag.Parse()
	if err := distributed(); err != nil {
		glog.Exitf("distributed returned with error: %v", err)
	}
}
