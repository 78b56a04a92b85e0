// Package checkpoint saves and restores model parameters in the SafeTensors format.
//
// File layout:
//
//	[8 bytes: header size (uint64 LE)]
//	[header: JSON object, tensor name -> {dtype, shape, data_offsets}, plus "__metadata__"]
//	[tensor data: raw little-endian bytes, tensors in name order]
//
// Parameters are always float32 in memory. On disk they are stored as F32,
// F16 (IEEE half precision) or BF16 (bfloat16) and converted back to
// float32 on load. Training metadata (run id, epoch, step, loss) and a
// SHA-256 checksum of the data section travel in "__metadata__".
//
// Example usage:
//
//	meta := checkpoint.NewMetadata(runID, epoch, step, loss)
//	if err := checkpoint.Save("epoch-3.safetensors", model, checkpoint.F16, meta); err != nil {
//	    return err
//	}
//
//	meta, err := checkpoint.Load("epoch-3.safetensors", model)
package checkpoint
