package logging

import (
	"time"
)

// Common field constructors
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value.String()}
}

func Latency(value time.Duration) Field {
	return Duration("latency", value)
}

func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Component field helpers for common component names
func Component(name string) Field {
	return String("component", name)
}

func StoreID(id string) Field {
	return String("store_id", id)
}

func Key(k uint64) Field {
	return Uint64("key", k)
}

func SSTPath(path string) Field {
	return String("sst", path)
}

func LevelNum(level int) Field {
	return Int("level", level)
}

func PageID(id string) Field {
	return String("page_id", id)
}

func Pages(n uint64) Field {
	return Uint64("pages", n)
}

func Entries(n int) Field {
	return Int("entries", n)
}
