package engine

import (
	"fmt"
	"sync"

	"svmengine/internal/decision"
	"svmengine/internal/domain/model"
	"svmengine/internal/probability"
	"svmengine/pkg/errors"
)

// slot is the scratch one worker evaluates its problems in
type slot struct {
	input    model.SparseVector // capacity fixed at the model's attribute count
	residual float64
	dim      int

	dec  *decision.Scratch
	prob *probability.Scratch

	notConverged int
	err          error
}

func newSlot(eval *decision.Evaluator, est *probability.Estimator, dim int) *slot {
	s := &slot{
		input: make(model.SparseVector, 0, dim),
		dim:   dim,
		dec:   eval.NewScratch(),
	}
	if est != nil {
		s.prob = est.NewScratch()
	}
	return s
}

// load maps a dense row onto the slot's sparse input: position p becomes
// index p+1, exact zeros are skipped, and positions past the model's
// attributes only add to the rbf residual.
func (s *slot) load(row []float64) {
	s.input = s.input[:0]
	s.residual = 0
	for p, x := range row {
		if x == 0 {
			continue
		}
		if p < s.dim {
			s.input = append(s.input, model.Node{Index: int32(p + 1), Value: x})
		} else {
			s.residual += x * x
		}
	}
}

func (s *slot) reset() {
	s.notConverged = 0
	s.err = nil
}

func (s *slot) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

// run evaluates n problems across the context's slots. Slot w takes problems
// w, w+W, w+2W, ... so every result lands at its input index. The first
// failure of any slot is returned after all workers finished.
func (c *Context) run(features []float64, stride, n int, solve func(s *slot, p int)) error {
	workers := len(c.slots)
	if workers > n {
		workers = n
	}
	for _, s := range c.slots {
		s.reset()
	}

	if workers == 1 {
		c.work(c.slots[0], 0, 1, features, stride, n, solve)
		return c.slots[0].err
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(s *slot, first int) {
			defer wg.Done()
			c.work(s, first, workers, features, stride, n, solve)
		}(c.slots[w], w)
	}
	wg.Wait()

	var merr errors.MultiError
	for _, s := range c.slots[:workers] {
		merr.Add(s.err)
	}
	return merr.ToError()
}

func (c *Context) work(s *slot, first, step int, features []float64, stride, n int, solve func(s *slot, p int)) {
	p := first
	defer func() {
		if r := recover(); r != nil {
			s.fail(errors.Wrapf(errors.ErrInternal, "problem %d: %s", p, fmt.Sprint(r)))
		}
	}()

	for ; p < n; p += step {
		s.load(features[p*stride : (p+1)*stride])
		solve(s, p)
		if s.err != nil {
			return
		}
	}
}
