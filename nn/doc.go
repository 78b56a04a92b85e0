// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the layers of the ViVQA answer decoder.
//
// # Overview
//
// This package contains:
//   - Layers: Linear, LayerNorm, Dropout, PositionwiseFeedForward
//   - Attention: ScaledDotProductAttention, MultiHeadAttention, MultiHeadCrossAttention, CausalMask
//   - Decoder: DecoderLayer and the Decoder stack
//   - Fusion: StackedAttention of a question over image patches
//   - Loss: CrossEntropyLoss with an ignore index
//
// # Basic Usage
//
//	backend := cpu.New()
//	decoder, err := nn.NewDecoder(nn.DecoderConfig{
//	    DModel: 768, NumHeads: 8, FFNHidden: 2048, DropProb: 0.1, NumLayers: 5,
//	}, backend)
//	if err != nil {
//	    return err
//	}
//	mask := nn.CausalMask(seqLen, backend)
//	out := decoder.Forward(context, answers, mask)
//
// Parameter names returned by StateDict follow the module tree of the
// reference PyTorch model, so exported weights load unchanged.
package nn
