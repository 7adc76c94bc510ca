package buffer

import (
	"sync"
	"testing"

	"github.com/c360/sembridge/metric"
)

func TestWriteReadFIFO(t *testing.T) {
	buf, err := NewCircularBuffer[int](10)
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 5; i++ {
		buf.Write(i)
	}
	if got := buf.Len(); got != 5 {
		t.Fatalf("Len() = %d, expected 5", got)
	}
	if got := buf.Cap(); got != 10 {
		t.Fatalf("Cap() = %d, expected 10", got)
	}

	for i := 1; i <= 5; i++ {
		item, ok := buf.Read()
		if !ok {
			t.Fatalf("Read() empty after %d reads", i-1)
		}
		if item != i {
			t.Errorf("Read() = %d, expected %d", item, i)
		}
	}

	if _, ok := buf.Read(); ok {
		t.Error("Read() on empty buffer returned ok")
	}
}

func TestDropOldest(t *testing.T) {
	var dropped []int
	buf, err := NewCircularBuffer[int](3,
		WithOverflowPolicy[int](DropOldest),
		WithDropCallback[int](func(item int) { dropped = append(dropped, item) }))
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 5; i++ {
		buf.Write(i)
	}

	items := buf.Items()
	want := []int{3, 4, 5}
	if len(items) != len(want) {
		t.Fatalf("Items() = %v, expected %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("Items()[%d] = %d, expected %d", i, items[i], want[i])
		}
	}

	if len(dropped) != 2 || dropped[0] != 1 || dropped[1] != 2 {
		t.Errorf("dropped = %v, expected [1 2]", dropped)
	}

	stats := buf.Stats()
	if stats.Overflows != 2 || stats.Drops != 2 {
		t.Errorf("overflows=%d drops=%d, expected 2 and 2", stats.Overflows, stats.Drops)
	}
	if stats.Writes != 5 {
		t.Errorf("writes = %d, expected 5", stats.Writes)
	}
}

func TestDropNewest(t *testing.T) {
	var dropped []int
	buf, err := NewCircularBuffer[int](3,
		WithOverflowPolicy[int](DropNewest),
		WithDropCallback[int](func(item int) { dropped = append(dropped, item) }))
	if err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 5; i++ {
		buf.Write(i)
	}

	items := buf.Items()
	want := []int{1, 2, 3}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("Items()[%d] = %d, expected %d", i, items[i], want[i])
		}
	}

	if len(dropped) != 2 || dropped[0] != 4 || dropped[1] != 5 {
		t.Errorf("dropped = %v, expected [4 5]", dropped)
	}

	stats := buf.Stats()
	if stats.Writes != 3 {
		t.Errorf("writes = %d, expected 3 (rejected items are not writes)", stats.Writes)
	}
	if stats.Drops != 2 {
		t.Errorf("drops = %d, expected 2", stats.Drops)
	}
}

func TestItemsNonDestructive(t *testing.T) {
	buf, err := NewCircularBuffer[string](4)
	if err != nil {
		t.Fatal(err)
	}
	buf.Write("a")
	buf.Write("b")

	first := buf.Items()
	second := buf.Items()
	if len(first) != 2 || len(second) != 2 {
		t.Fatalf("Items() consumed the buffer: %v then %v", first, second)
	}
	if buf.Len() != 2 {
		t.Errorf("Len() = %d after Items(), expected 2", buf.Len())
	}

	// The copy is detached from the ring.
	first[0] = "mutated"
	if got := buf.Items()[0]; got != "a" {
		t.Errorf("ring saw external mutation: %q", got)
	}
}

func TestItemsWrapsAround(t *testing.T) {
	buf, err := NewCircularBuffer[int](3)
	if err != nil {
		t.Fatal(err)
	}

	// Advance tail past the start, then refill across the wrap point.
	buf.Write(1)
	buf.Write(2)
	buf.Read()
	buf.Write(3)
	buf.Write(4)

	items := buf.Items()
	want := []int{2, 3, 4}
	if len(items) != 3 {
		t.Fatalf("Items() = %v, expected %v", items, want)
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("Items()[%d] = %d, expected %d", i, items[i], want[i])
		}
	}
}

func TestReadBatch(t *testing.T) {
	buf, err := NewCircularBuffer[int](8)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 5; i++ {
		buf.Write(i)
	}

	if got := buf.ReadBatch(0); got != nil {
		t.Errorf("ReadBatch(0) = %v, expected nil", got)
	}

	batch := buf.ReadBatch(3)
	if len(batch) != 3 || batch[0] != 1 || batch[2] != 3 {
		t.Errorf("ReadBatch(3) = %v, expected [1 2 3]", batch)
	}

	// Asking for more than remains returns what is there.
	batch = buf.ReadBatch(10)
	if len(batch) != 2 || batch[0] != 4 || batch[1] != 5 {
		t.Errorf("ReadBatch(10) = %v, expected [4 5]", batch)
	}

	if got := buf.ReadBatch(1); got != nil {
		t.Errorf("ReadBatch on empty buffer = %v, expected nil", got)
	}
}

func TestClear(t *testing.T) {
	var dropped []int
	buf, err := NewCircularBuffer[int](4,
		WithDropCallback[int](func(item int) { dropped = append(dropped, item) }))
	if err != nil {
		t.Fatal(err)
	}
	buf.Write(1)
	buf.Write(2)

	buf.Clear()
	if buf.Len() != 0 {
		t.Errorf("Len() = %d after Clear, expected 0", buf.Len())
	}
	if len(dropped) != 0 {
		t.Errorf("Clear invoked the drop callback: %v", dropped)
	}

	buf.Write(7)
	if item, ok := buf.Read(); !ok || item != 7 {
		t.Errorf("Read() after Clear = %d, %v; expected 7, true", item, ok)
	}
}

func TestCapacityValidation(t *testing.T) {
	if _, err := NewCircularBuffer[int](0); err == nil {
		t.Error("NewCircularBuffer(0) succeeded, expected error")
	}
	if _, err := NewCircularBuffer[int](-3); err == nil {
		t.Error("NewCircularBuffer(-3) succeeded, expected error")
	}
}

func TestDropCallbackRunsOutsideLock(t *testing.T) {
	// A callback that re-enters the buffer deadlocks if it were invoked
	// under the buffer's lock.
	var buf *CircularBuffer[int]
	observed := -1

	buf, err := NewCircularBuffer[int](1,
		WithDropCallback[int](func(int) { observed = buf.Len() }))
	if err != nil {
		t.Fatal(err)
	}

	buf.Write(1)
	buf.Write(2) // evicts 1, callback re-enters Len()

	if observed != 1 {
		t.Errorf("callback observed Len() = %d, expected 1", observed)
	}
}

func TestSummaryRates(t *testing.T) {
	s := Summary{Writes: 8, Drops: 2, Len: 3, Cap: 4}
	if got := s.DropRate(); got != 0.2 {
		t.Errorf("DropRate() = %f, expected 0.2", got)
	}
	if got := s.Utilization(); got != 0.75 {
		t.Errorf("Utilization() = %f, expected 0.75", got)
	}

	var empty Summary
	if got := empty.DropRate(); got != 0 {
		t.Errorf("empty DropRate() = %f, expected 0", got)
	}
	if got := empty.Utilization(); got != 0 {
		t.Errorf("empty Utilization() = %f, expected 0", got)
	}
}

func TestConcurrentWriters(t *testing.T) {
	buf, err := NewCircularBuffer[int](64)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				buf.Write(base*100 + i)
			}
		}(w)
	}
	wg.Wait()

	if got := buf.Len(); got != 64 {
		t.Errorf("Len() = %d after saturation, expected 64", got)
	}
	stats := buf.Stats()
	if stats.Writes != 800 {
		t.Errorf("writes = %d, expected 800", stats.Writes)
	}
	if stats.Drops != 800-64 {
		t.Errorf("drops = %d, expected %d", stats.Drops, 800-64)
	}
}

func TestPrometheusExport(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	buf, err := NewCircularBuffer[int](2, WithMetrics[int](registry, "test_ring"))
	if err != nil {
		t.Fatal(err)
	}

	buf.Write(1)
	buf.Write(2)
	buf.Write(3) // overflow
	buf.Read()

	families, err := registry.PrometheusRegistry().Gather()
	if err != nil {
		t.Fatal(err)
	}

	got := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.Metric {
			if m.Counter != nil {
				got[mf.GetName()] = m.Counter.GetValue()
			}
			if m.Gauge != nil {
				got[mf.GetName()] = m.Gauge.GetValue()
			}
		}
	}

	checks := map[string]float64{
		"sembridge_buffer_writes_total":    3,
		"sembridge_buffer_reads_total":     1,
		"sembridge_buffer_overflows_total": 1,
		"sembridge_buffer_drops_total":     1,
		"sembridge_buffer_size":            1,
		"sembridge_buffer_utilization":     0.5,
	}
	for name, want := range checks {
		if got[name] != want {
			t.Errorf("%s = %f, expected %f", name, got[name], want)
		}
	}

	// A second buffer under the same component collides on registration.
	if _, err := NewCircularBuffer[int](2, WithMetrics[int](registry, "test_ring")); err == nil {
		t.Error("duplicate metrics registration succeeded, expected error")
	}
}
