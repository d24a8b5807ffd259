// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package engine

import (
	"testing"

	"github.com/gviegas/deferred/linear"
)

func TestMaterialClamped(t *testing.T) {
	m := Material{
		BaseColor: linear.V4{-1, 0.25, 2, 1},
		Metalness: 1.5,
		Roughness: -0.5,
	}
	want := Material{
		BaseColor: linear.V4{0, 0.25, 1, 1},
		Metalness: 1,
		Roughness: 0,
	}
	if c := m.clamped(); c != want {
		t.Fatalf("Material.clamped:\nhave %v\nwant %v", c, want)
	}
	if c := DefaultMaterial.clamped(); c != DefaultMaterial {
		t.Fatalf("Material.clamped:\nhave %v\nwant %v", c, DefaultMaterial)
	}
	if m.Metalness != 1.5 {
		t.Fatal("Material.clamped: receiver modified")
	}
}
