package common

import (
	"github.com/nspcc-dev/neo-go/pkg/interop/native/std"
	"github.com/nspcc-dev/neo-go/pkg/interop/storage"
)

// GetInt returns integer stored by the key or zero if there is no such key.
func GetInt(ctx storage.Context, key any) int {
	data := storage.Get(ctx, key)
	if data != nil {
		return data.(int)
	}

	return 0
}

// AddInt adds delta to the integer stored by the key and returns the
// new value. Zero values are removed from the storage.
func AddInt(ctx storage.Context, key any, delta int) int {
	v := GetInt(ctx, key) + delta
	if v == 0 {
		storage.Delete(ctx, key)
	} else {
		storage.Put(ctx, key, v)
	}

	return v
}

// SetSerialized serializes data and puts it into contract storage.
func SetSerialized(ctx storage.Context, key any, value any) {
	data := std.Serialize(value)
	storage.Put(ctx, key, data)
}
