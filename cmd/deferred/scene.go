// Copyright 2024 Gustavo C. Viegas. All rights reserved.

package main

import (
	"math"
	"time"

	"github.com/gviegas/deferred/engine"
	"github.com/gviegas/deferred/linear"
	"github.com/gviegas/deferred/scene"
)

const spinTag = "spin"

// demoScene registers the demo meshes and materials with
// r and creates the scene that uses them.
func demoScene(r *engine.Renderer) (*scene.Scene, error) {
	if _, err := r.AddMesh("cube", engine.Cube()); err != nil {
		return nil, err
	}
	if _, err := r.AddMesh("plane", engine.Plane(20)); err != nil {
		return nil, err
	}
	r.SetMaterial("floor", engine.Material{BaseColor: linear.V4{0.5, 0.5, 0.5, 1}, Roughness: 0.9})
	r.SetMaterial("gold", engine.Material{BaseColor: linear.V4{1, 0.77, 0.34, 1}, Metalness: 1, Roughness: 0.3})
	r.SetMaterial("red", engine.Material{BaseColor: linear.V4{0.8, 0.1, 0.1, 1}, Roughness: 0.6})

	s := scene.New()
	add := func(tf scene.Transform, comps ...func(*scene.Entity)) {
		e := s.Create().Get()
		scene.Set(e, tf)
		for _, c := range comps {
			c(e)
		}
	}
	at := func(x, y, z float32) scene.Transform {
		tf := scene.NewTransform()
		tf.Position = linear.V3{x, y, z}
		return tf
	}

	cam := at(0, 4, 10)
	cam.Rotation.Rotate(-0.35, &linear.V3{1, 0, 0})
	add(cam, func(e *scene.Entity) {
		scene.Set(e, scene.Camera{YFov: math.Pi / 3, Znear: 0.1, Zfar: 100})
	})

	sun := at(0, 10, 0)
	sun.Rotation.Rotate(-math.Pi/3, &linear.V3{1, 0, 0})
	add(sun, func(e *scene.Entity) {
		scene.Set(e, scene.Light{Type: scene.DirectLight, Color: linear.V3{1, 0.95, 0.9}, Intensity: 3, CastShadow: true})
	})
	spot := at(4, 6, 4)
	spot.Rotation.Rotate(-math.Pi/2, &linear.V3{1, 0, 0})
	add(spot, func(e *scene.Entity) {
		scene.Set(e, scene.Light{
			Type:       scene.SpotLight,
			Color:      linear.V3{0.6, 0.7, 1},
			Intensity:  40,
			Range:      15,
			InnerAngle: 0.35,
			OuterAngle: 0.6,
			CastShadow: true,
		})
	})
	for i := range 4 {
		a := float64(i) * math.Pi / 2
		add(at(float32(6*math.Cos(a)), 1.5, float32(6*math.Sin(a))), func(e *scene.Entity) {
			scene.Set(e, scene.Light{Type: scene.PointLight, Color: linear.V3{1, 0.5, 0.2}, Intensity: 10, Range: 8})
		})
	}

	add(at(0, 0, 0), func(e *scene.Entity) {
		scene.Set(e, scene.Model{Mesh: "plane", Material: "floor"})
	})
	mats := [...]string{"gold", "red"}
	for i := range 9 {
		x, z := float32(i%3-1)*3, float32(i/3-1)*3
		add(at(x, 1, z), func(e *scene.Entity) {
			scene.Set(e, scene.Model{Mesh: "cube", Material: mats[i%len(mats)], CastShadow: true})
			scene.Set(e, scene.Tag(spinTag))
		})
	}
	return s, nil
}

// animate rotates every spinning entity about the Y axis.
func animate(s *scene.Scene, elapsed time.Duration) {
	angle := float32(elapsed.Seconds() * 0.5)
	for _, h := range s.FindAllWithTag(spinTag) {
		if tf := scene.Get[scene.Transform](h.Get()); tf != nil {
			tf.Rotation.Rotate(angle, &linear.V3{0, 1, 0})
		}
	}
}
