package util

import (
	"hash/maphash"
	"sync"
)

// KeyedMutex 分段锁：同一个 key 互斥，不同 key 大概率并行
type KeyedMutex struct {
	seed   maphash.Seed
	stripe []sync.Mutex
}

func NewKeyedMutex(stripes int) *KeyedMutex {
	if stripes <= 0 {
		stripes = 256
	}
	return &KeyedMutex{seed: maphash.MakeSeed(), stripe: make([]sync.Mutex, stripes)}
}

// Lock 返回解锁函数
func (k *KeyedMutex) Lock(key string) func() {
	m := &k.stripe[maphash.String(k.seed, key)%uint64(len(k.stripe))]
	m.Lock()
	return m.Unlock
}
