package ai

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"length mismatch", []float32{1, 2}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		got := CosineSimilarity(tt.a, tt.b)
		if math.Abs(float64(got-tt.want)) > 1e-6 {
			t.Errorf("%s: CosineSimilarity = %f, want %f", tt.name, got, tt.want)
		}
	}
}

func TestVectorBlobRoundTrip(t *testing.T) {
	in := []float32{0.25, -1.5, 3}
	blob, err := FloatsToBytes(in)
	if err != nil {
		t.Fatalf("FloatsToBytes failed: %v", err)
	}
	if len(blob) != 12 {
		t.Fatalf("blob length = %d, want 12", len(blob))
	}
	out, err := BytesToFloats(blob)
	if err != nil {
		t.Fatalf("BytesToFloats failed: %v", err)
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %f, want %f", i, out[i], in[i])
		}
	}
	if _, err := BytesToFloats([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}
