package cluster

import "github.com/OneOfOne/xxhash"

// Digest hashes a lookup key into a cheap 64-bit fingerprint, used to
// keep find-by-key off the O(n) path for JVMRoute and balancer name
// lookups. Worker-tuple lookups are not indexed; they scan the table.
func Digest(key string) uint64 {
	return xxhash.ChecksumString64S(key, 0)
}

// keyIndex maps a digest to the (small) set of table ids that hash to
// it, so find-by-key checks only actual candidates instead of scanning
// every slot. Collisions are resolved by the caller re-comparing the
// real key against the candidate row - the index never claims more
// than "probably this one, verify it."
type keyIndex struct {
	buckets map[uint64][]int
}

func newKeyIndex() *keyIndex {
	return &keyIndex{buckets: make(map[uint64][]int)}
}

func (k *keyIndex) add(key string, id int) {
	d := Digest(key)
	k.buckets[d] = append(k.buckets[d], id)
}

func (k *keyIndex) remove(key string, id int) {
	d := Digest(key)
	ids := k.buckets[d]
	for i, v := range ids {
		if v == id {
			k.buckets[d] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

func (k *keyIndex) candidates(key string) []int {
	return k.buckets[Digest(key)]
}
