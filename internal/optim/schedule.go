package optim

// LinearSchedule scales an optimizer's base learning rate linearly from 0
// to 1 over warmup steps, then linearly down to 0 at total steps.
//
//	factor(step) = step / warmup                                  step < warmup
//	factor(step) = max(0, (total - step) / (total - warmup))      otherwise
type LinearSchedule struct {
	optimizer Optimizer
	baseLR    float32
	warmup    int
	total     int
	step      int
}

// NewLinearSchedule attaches a schedule to optimizer, using its current
// learning rate as the base, and applies factor(0) immediately.
func NewLinearSchedule(optimizer Optimizer, warmup, total int) *LinearSchedule {
	s := &LinearSchedule{
		optimizer: optimizer,
		baseLR:    optimizer.GetLR(),
		warmup:    max(warmup, 0),
		total:     total,
	}
	optimizer.SetLR(s.baseLR * s.Factor(0))
	return s
}

// Factor returns the multiplier applied to the base learning rate at step.
func (s *LinearSchedule) Factor(step int) float32 {
	if step < s.warmup {
		return float32(step) / float32(max(1, s.warmup))
	}
	return max(0, float32(s.total-step)/float32(max(1, s.total-s.warmup)))
}

// Step advances the schedule by one optimizer step.
func (s *LinearSchedule) Step() {
	s.step++
	s.optimizer.SetLR(s.baseLR * s.Factor(s.step))
}

// CurrentStep returns the number of completed steps.
func (s *LinearSchedule) CurrentStep() int {
	return s.step
}
