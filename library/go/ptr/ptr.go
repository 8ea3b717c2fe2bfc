package ptr

import "time"

// T returns a pointer to the given value.
func T[V any](v V) *V { return &v }

func Bool(v bool) *bool { return &v }

func Int(v int) *int { return &v }

func Int32(v int32) *int32 { return &v }

func Int64(v int64) *int64 { return &v }

func Uint32(v uint32) *uint32 { return &v }

func Uint64(v uint64) *uint64 { return &v }

func Float64(v float64) *float64 { return &v }

func String(v string) *string { return &v }

func Duration(v time.Duration) *time.Duration { return &v }
