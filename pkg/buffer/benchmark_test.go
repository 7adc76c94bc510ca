package buffer

import (
	"testing"
)

func BenchmarkWriteDropOldest(b *testing.B) {
	buf, err := NewCircularBuffer[int](128, WithOverflowPolicy[int](DropOldest))
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			buf.Write(i)
			i++
		}
	})
}

func BenchmarkWriteDropNewest(b *testing.B) {
	buf, err := NewCircularBuffer[int](128, WithOverflowPolicy[int](DropNewest))
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			buf.Write(i)
			i++
		}
	})
}

func BenchmarkItems(b *testing.B) {
	buf, err := NewCircularBuffer[int](128)
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < 128; i++ {
		buf.Write(i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = buf.Items()
	}
}
