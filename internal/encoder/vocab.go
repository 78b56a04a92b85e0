package encoder

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// HashVocab is a stateless whitespace tokenizer that hashes every word into
// a fixed vocabulary. Ids below 4 are reserved for the special tokens.
type HashVocab struct {
	size int
}

// NewHashVocab creates a vocabulary of the given size (at least 5).
func NewHashVocab(size int) (*HashVocab, error) {
	if size <= int(UNKID)+1 {
		return nil, fmt.Errorf("vocab size %d leaves no room for words", size)
	}
	return &HashVocab{size: size}, nil
}

// Size returns the vocabulary size.
func (v *HashVocab) Size() int {
	return v.size
}

// ID returns the id of a single word.
func (v *HashVocab) ID(word string) int32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(word)))
	return UNKID + 1 + int32(h.Sum32()%uint32(v.size-int(UNKID)-1)) //nolint:gosec // bounded by size
}

// Encode implements Tokenizer.
func (v *HashVocab) Encode(text string, maxLen int) []int32 {
	words := strings.Fields(text)
	if room := maxLen - 2; len(words) > room {
		words = words[:max(room, 0)]
	}

	ids := make([]int32, 0, maxLen)
	ids = append(ids, BOSID)
	for _, w := range words {
		ids = append(ids, v.ID(w))
	}
	ids = append(ids, EOSID)
	for len(ids) < maxLen {
		ids = append(ids, PadID)
	}
	return ids[:maxLen]
}
