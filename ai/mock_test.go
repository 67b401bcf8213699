package ai

import (
	"context"
	"testing"
)

func TestMockEmbedderDeterministic(t *testing.T) {
	m := &MockEmbedder{Dim: 16}
	ctx := context.Background()

	a1, err := m.Embed(ctx, "hello")
	if err != nil {
		t.Fatal(err)
	}
	a2, err := m.Embed(ctx, "hello")
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Embed(ctx, "goodbye")
	if err != nil {
		t.Fatal(err)
	}

	if len(a1) != 16 {
		t.Fatalf("dim = %d, want 16", len(a1))
	}
	for i := range a1 {
		if a1[i] != a2[i] {
			t.Fatal("same text produced different vectors")
		}
	}
	same := true
	for i := range a1 {
		if a1[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("distinct texts produced identical vectors")
	}
	if m.CallCount() != 3 {
		t.Fatalf("call count = %d, want 3", m.CallCount())
	}
}

func TestMockEmbedderBatchOrder(t *testing.T) {
	m := &MockEmbedder{}
	texts := []string{"one", "two", "three"}
	vecs, err := m.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("got %d vectors, want %d", len(vecs), len(texts))
	}
	for i, text := range texts {
		single, _ := m.Embed(context.Background(), text)
		for j := range single {
			if vecs[i][j] != single[j] {
				t.Fatalf("batch vector %d does not match single embed", i)
			}
		}
	}
}
