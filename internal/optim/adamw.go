package optim

import (
	"math"

	"github.com/born-ml/vivqa/internal/nn"
	"github.com/born-ml/vivqa/internal/tensor"
)

// AdamW implements Adam with decoupled weight decay (Loshchilov & Hutter, 2019).
//
// Update rule:
//
//	param = param * (1 - lr * weight_decay)
//	m_t   = beta1 * m_{t-1} + (1-beta1) * gradient
//	v_t   = beta2 * v_{t-1} + (1-beta2) * gradient²
//	m_hat = m_t / (1 - beta1^t)
//	v_hat = v_t / (1 - beta2^t)
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)
//
// Example:
//
//	optimizer := optim.NewAdamW(model.Parameters(), optim.AdamWConfig{
//	    LR:          1e-5,
//	    WeightDecay: 0.01,
//	})
type AdamW[B tensor.Backend] struct {
	params      []*nn.Parameter[B]
	lr          float32
	beta1       float32
	beta2       float32
	eps         float32
	weightDecay float32
	t           int                            // Timestep for bias correction
	m           map[*nn.Parameter[B]][]float32 // First moment estimates
	v           map[*nn.Parameter[B]][]float32 // Second moment estimates
}

// AdamWConfig holds configuration for the AdamW optimizer.
type AdamWConfig struct {
	LR          float32    // Learning rate (default: 1e-5)
	Betas       [2]float32 // Running average coefficients (default: [0.9, 0.999])
	Eps         float32    // Term for numerical stability (default: 1e-8)
	WeightDecay float32    // Decoupled weight decay (default: 0.01, negative disables)
}

// DefaultAdamWConfig returns the hyperparameters used to train the decoder.
func DefaultAdamWConfig() AdamWConfig {
	return AdamWConfig{
		LR:          1e-5,
		Betas:       [2]float32{0.9, 0.999},
		Eps:         1e-8,
		WeightDecay: 0.01,
	}
}

// NewAdamW creates a new AdamW optimizer. Zero fields take their defaults;
// a negative WeightDecay turns decay off.
func NewAdamW[B tensor.Backend](params []*nn.Parameter[B], config AdamWConfig) *AdamW[B] {
	defaults := DefaultAdamWConfig()
	if config.LR == 0 {
		config.LR = defaults.LR
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = defaults.Betas[0]
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = defaults.Betas[1]
	}
	if config.Eps == 0 {
		config.Eps = defaults.Eps
	}
	switch {
	case config.WeightDecay == 0:
		config.WeightDecay = defaults.WeightDecay
	case config.WeightDecay < 0:
		config.WeightDecay = 0
	}

	return &AdamW[B]{
		params:      params,
		lr:          config.LR,
		beta1:       config.Betas[0],
		beta2:       config.Betas[1],
		eps:         config.Eps,
		weightDecay: config.WeightDecay,
		m:           make(map[*nn.Parameter[B]][]float32),
		v:           make(map[*nn.Parameter[B]][]float32),
	}
}

// Step performs a single optimization step.
// Parameters with no gradient are skipped, including their weight decay.
func (a *AdamW[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++

	biasCorrection1 := float32(1.0 - math.Pow(float64(a.beta1), float64(a.t)))
	biasCorrection2 := float32(1.0 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, param := range a.params {
		grad := getGradient(param, grads)
		if grad == nil {
			continue
		}

		n := param.Tensor().NumElements()
		m, ok := a.m[param]
		if !ok {
			m = make([]float32, n)
			a.m[param] = m
		}
		v, ok := a.v[param]
		if !ok {
			v = make([]float32, n)
			a.v[param] = v
		}

		a.updateParameter(param.Tensor().Data(), grad.Data(), m, v, biasCorrection1, biasCorrection2)
	}
}

func (a *AdamW[B]) updateParameter(paramData, gradData, mData, vData []float32, biasCorrection1, biasCorrection2 float32) {
	decay := 1 - a.lr*a.weightDecay
	for i := range paramData {
		g := gradData[i]

		paramData[i] *= decay

		mData[i] = a.beta1*mData[i] + (1.0-a.beta1)*g
		vData[i] = a.beta2*vData[i] + (1.0-a.beta2)*g*g

		mHat := mData[i] / biasCorrection1
		vHat := vData[i] / biasCorrection2

		paramData[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *AdamW[B]) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (a *AdamW[B]) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *AdamW[B]) SetLR(lr float32) {
	a.lr = lr
}

// GetTimestep returns the number of steps taken.
func (a *AdamW[B]) GetTimestep() int {
	return a.t
}
