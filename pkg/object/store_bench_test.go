package object

import (
	"fmt"
	"testing"
)

func benchFeature(i int) *FeatureObj {
	return &FeatureObj{Values: []Value{
		Geometry(fmt.Sprintf("LINESTRING (%d 0, %d 1)", i, i+1)),
		String(fmt.Sprintf("road %d", i)),
		Int(int64(i % 6)),
		Float(float64(i) * 0.5),
	}}
}

// BenchmarkStorePutFeature benchmarks writing distinct features to a
// compressed loose store.
func BenchmarkStorePutFeature(b *testing.B) {
	s := NewStore(b.TempDir())

	features := make([]*FeatureObj, b.N)
	for i := range features {
		features[i] = benchFeature(i)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Put(features[i]); err != nil {
			b.Fatalf("Put: %v", err)
		}
	}
}

// BenchmarkStoreGetFeature benchmarks decoding a stored feature, with and
// without the object cache.
func BenchmarkStoreGetFeature(b *testing.B) {
	for _, cacheSize := range []int{0, DefaultCacheSize} {
		b.Run(fmt.Sprintf("cache=%d", cacheSize), func(b *testing.B) {
			s, err := NewStoreWithBackend(NewLooseBackend(b.TempDir(), true), Options{CacheSize: cacheSize})
			if err != nil {
				b.Fatalf("NewStoreWithBackend: %v", err)
			}
			h, err := s.Put(benchFeature(1))
			if err != nil {
				b.Fatalf("Put: %v", err)
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := s.ReadFeature(h); err != nil {
					b.Fatalf("ReadFeature: %v", err)
				}
			}
		})
	}
}

var marshalTreeBenchmarkSink []byte

func BenchmarkMarshalTree(b *testing.B) {
	tr := &TreeObj{Size: 512}
	for i := 0; i < 512; i++ {
		tr.Nodes = append(tr.Nodes, Node{
			Name:     fmt.Sprintf("f%04d", i),
			Type:     TypeFeature,
			ObjectID: HashBytes([]byte{byte(i), byte(i >> 8)}),
			Extent:   &Envelope{MinX: float64(i), MaxX: float64(i + 1)},
		})
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		marshalTreeBenchmarkSink = MarshalTree(tr)
	}
}
