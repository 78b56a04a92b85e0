package tensor

import "gonum.org/v1/gonum/stat/distuv"

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	backend := cpu.New()
//	t := tensor.Zeros(Shape{3, 4}, backend)
func Zeros[B Backend](shape Shape, b B) *Tensor[B] {
	return New(MustRaw(shape, b.Device()), b)
}

// Ones creates a tensor filled with ones.
func Ones[B Backend](shape Shape, b B) *Tensor[B] {
	return Full(shape, 1, b)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	t := tensor.Full(Shape{3, 3}, 3.14, backend)
func Full[B Backend](shape Shape, value float32, b B) *Tensor[B] {
	t := Zeros(shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Randn creates a tensor with random values from a normal distribution (mean=0, std=1).
//
// Example:
//
//	t := tensor.Randn(Shape{100, 100}, backend)
func Randn[B Backend](shape Shape, b B) *Tensor[B] {
	return RandNormal(shape, 0, 1, b)
}

// RandNormal creates a tensor with values drawn from N(mean, std²).
func RandNormal[B Backend](shape Shape, mean, std float64, b B) *Tensor[B] {
	t := Zeros(shape, b)
	dist := distuv.Normal{Mu: mean, Sigma: std}
	data := t.Data()
	for i := range data {
		data[i] = float32(dist.Rand())
	}
	return t
}

// RandUniform creates a tensor with values drawn uniformly from [low, high).
func RandUniform[B Backend](shape Shape, low, high float64, b B) *Tensor[B] {
	t := Zeros(shape, b)
	dist := distuv.Uniform{Min: low, Max: high}
	data := t.Data()
	for i := range data {
		data[i] = float32(dist.Rand())
	}
	return t
}

// Eye creates an identity matrix of size n×n.
func Eye[B Backend](n int, b B) *Tensor[B] {
	t := Zeros(Shape{n, n}, b)
	data := t.Data()
	for i := 0; i < n; i++ {
		data[i*n+i] = 1
	}
	return t
}
