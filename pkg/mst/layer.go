package mst

import "lukechampine.com/blake3"

// layerOf returns a key's tree layer: the number of leading zero
// nibbles in BLAKE3(key). A node at layer L holds only keys whose
// layer is exactly L; keys with a lower layer live in the subtrees
// between and around those keys.
func layerOf(key string) int {
	h := blake3.Sum256([]byte(key))
	layer := 0
	for _, b := range h {
		if b == 0 {
			layer += 2
			continue
		}
		if b>>4 == 0 {
			layer++
		}
		break
	}
	return layer
}
