// Package gae implements functionality for storing a generalized
// advantage estimate buffer
package gae

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Buffer implements a batched forward view generalized advantage
// estimate - GAE(λ) - buffer following https://arxiv.org/abs/1506.02438.
//
// The buffer stores one transition per environment per step for a
// batch of environments stepped in lock step. Environments that
// terminate are reset by the caller, so a done flag at step t cuts the
// bootstrap from step t+1 for that environment only.
type Buffer struct {
	nEnv       int // Number of environments per step
	obsSize    int // Size of state observations
	actionSize int // Number of action dimensions
	maxSteps   int // Max number of steps stored

	currentStep int  // Current step in the buffer
	finished    bool // Whether advantages have been computed

	lambda float64 // λ for GAE(λ) calculation
	gamma  float64 // Discount factor ℽ

	// Buffers for storing data, laid out step-major: element (t, env)
	// of a scalar buffer is at index t*nEnv + env
	obsBuffer     []float64
	actBuffer     []float64
	rewBuffer     []float64
	valBuffer     []float64
	logProbBuffer []float64
	doneBuffer    []bool
	advBuffer     []float64
	retBuffer     []float64
}

// Batch holds the data of a full Buffer, one transition per row
type Batch struct {
	Obs        *mat.Dense
	Actions    *mat.Dense
	Advantages []float64 // Standardized to mean 0 and standard deviation 1
	Returns    []float64
	Values     []float64
	LogProbs   []float64

	// RawAdvantages holds the advantages before standardization
	RawAdvantages []float64
}

// Len returns the number of transitions in the batch
func (b *Batch) Len() int {
	return len(b.Returns)
}

// New creates and returns a new GAE(λ) buffer for nEnv environments
// that holds up to maxSteps steps
func New(nEnv, obsDim, actDim, maxSteps int, lambda, gamma float64) *Buffer {
	if nEnv <= 0 || obsDim <= 0 || actDim <= 0 || maxSteps <= 0 {
		panic(fmt.Sprintf("new: sizes must be positive, have (envs=%v, "+
			"obs=%v, act=%v, steps=%v)", nEnv, obsDim, actDim, maxSteps))
	}

	size := nEnv * maxSteps
	return &Buffer{
		nEnv:          nEnv,
		obsSize:       obsDim,
		actionSize:    actDim,
		maxSteps:      maxSteps,
		lambda:        lambda,
		gamma:         gamma,
		obsBuffer:     make([]float64, size*obsDim),
		actBuffer:     make([]float64, size*actDim),
		rewBuffer:     make([]float64, size),
		valBuffer:     make([]float64, size),
		logProbBuffer: make([]float64, size),
		doneBuffer:    make([]bool, size),
		advBuffer:     make([]float64, size),
		retBuffer:     make([]float64, size),
	}
}

// Len returns the number of steps stored in the buffer
func (v *Buffer) Len() int {
	return v.currentStep
}

// Cap returns the maximum number of steps the buffer can store
func (v *Buffer) Cap() int {
	return v.maxSteps
}

// Store stores a single step of observations, actions, rewards, value
// estimates, action log probabilities and done flags, one row or
// element per environment
func (v *Buffer) Store(obs, act *mat.Dense, rew, val, logProb []float64,
	dones []bool) error {
	if v.currentStep >= v.maxSteps {
		return fmt.Errorf("store: cannot add new transition, buffer at " +
			"maximum capacity")
	}
	if r, c := obs.Dims(); r != v.nEnv || c != v.obsSize {
		return fmt.Errorf("store: illegal obs shape \n\twant(%v, %v)"+
			"\n\thave(%v, %v)", v.nEnv, v.obsSize, r, c)
	}
	if r, c := act.Dims(); r != v.nEnv || c != v.actionSize {
		return fmt.Errorf("store: illegal act shape \n\twant(%v, %v)"+
			"\n\thave(%v, %v)", v.nEnv, v.actionSize, r, c)
	}
	for name, n := range map[string]int{"rew": len(rew), "val": len(val),
		"logProb": len(logProb), "dones": len(dones)} {
		if n != v.nEnv {
			return fmt.Errorf("store: illegal %v length \n\twant(%v)"+
				"\n\thave(%v)", name, v.nEnv, n)
		}
	}

	row := v.currentStep * v.nEnv
	for e := 0; e < v.nEnv; e++ {
		start := (row + e) * v.obsSize
		copy(v.obsBuffer[start:start+v.obsSize], obs.RawRowView(e))

		start = (row + e) * v.actionSize
		copy(v.actBuffer[start:start+v.actionSize], act.RawRowView(e))
	}
	copy(v.rewBuffer[row:row+v.nEnv], rew)
	copy(v.valBuffer[row:row+v.nEnv], val)
	copy(v.logProbBuffer[row:row+v.nEnv], logProb)
	copy(v.doneBuffer[row:row+v.nEnv], dones)

	v.currentStep++
	v.finished = false
	return nil
}

// FinishPath computes advantage estimates using GAE(λ) and
// rewards-to-go estimates for every stored step.
//
// The lastVals argument holds v(s) for each environment's observation
// after the last stored step, which bootstraps the estimates of
// environments that had not terminated by the end of the rollout.
func (v *Buffer) FinishPath(lastVals []float64) error {
	if len(lastVals) != v.nEnv {
		return fmt.Errorf("finishpath: illegal lastVals length \n\twant(%v)"+
			"\n\thave(%v)", v.nEnv, len(lastVals))
	}

	for e := 0; e < v.nEnv; e++ {
		nextVal, nextAdv := lastVals[e], 0.0
		for t := v.currentStep - 1; t >= 0; t-- {
			i := t*v.nEnv + e

			notDone := 1.0
			if v.doneBuffer[i] {
				notDone = 0.0
			}

			delta := v.rewBuffer[i] + v.gamma*nextVal*notDone - v.valBuffer[i]
			nextAdv = delta + v.gamma*v.lambda*notDone*nextAdv

			v.advBuffer[i] = nextAdv
			v.retBuffer[i] = nextAdv + v.valBuffer[i]
			nextVal = v.valBuffer[i]
		}
	}

	v.finished = true
	return nil
}

// Get returns the data stored in the buffer and clears it. Advantages
// are standardized to mean 0 and standard deviation 1. FinishPath must
// be called before Get.
func (v *Buffer) Get() (*Batch, error) {
	if !v.finished {
		return nil, fmt.Errorf("get: advantages must be computed before " +
			"sampling")
	}
	if v.currentStep == 0 {
		return nil, fmt.Errorf("get: buffer is empty")
	}

	n := v.currentStep * v.nEnv
	batch := &Batch{
		Obs: mat.NewDense(n, v.obsSize,
			append([]float64(nil), v.obsBuffer[:n*v.obsSize]...)),
		Actions: mat.NewDense(n, v.actionSize,
			append([]float64(nil), v.actBuffer[:n*v.actionSize]...)),
		Returns:       append([]float64(nil), v.retBuffer[:n]...),
		Values:        append([]float64(nil), v.valBuffer[:n]...),
		LogProbs:      append([]float64(nil), v.logProbBuffer[:n]...),
		RawAdvantages: append([]float64(nil), v.advBuffer[:n]...),
	}

	// Advantage normalization
	adv := append([]float64(nil), batch.RawAdvantages...)
	mean := stat.Mean(adv, nil)
	std := stat.StdDev(adv, nil) + 1e-8
	if n == 1 {
		std = 1
	}
	floats.AddConst(-mean, adv)
	floats.Scale(1/std, adv)
	batch.Advantages = adv

	v.currentStep = 0
	v.finished = false
	return batch, nil
}
