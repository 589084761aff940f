package ecs

// System represents a behavior that operates on entities with specific components.
// User-defined systems should implement this interface and can include Query fields
// for accessing entities, as well as custom state fields that persist between frames.
type System interface {
	Execute(frame *UpdateFrame)
}

// DrawTarget is the rendering backend as seen by systems. It is only valid for
// the duration of the Render call that received it.
type DrawTarget interface {
	DrawPoints(points []Vertex)
}

// Vertex is a coloured point handed to a DrawTarget.
type Vertex struct {
	X, Y  float64
	Color Color
}

// Color is an 8-bit RGBA colour.
type Color struct {
	R, G, B, A uint8
}

// Renderer is implemented by systems that draw once per frame.
type Renderer interface {
	Render(target DrawTarget)
}
