package models

import (
	"github.com/taigrr/threedviewer/pkg/math3d"
)

// Tag classifies a node. Only TagModel nodes count towards bounds and
// picking; overlays and helpers are added by the viewer after loading.
type Tag int

const (
	TagModel Tag = iota
	TagOverlay
	TagHelper
)

func (t Tag) String() string {
	switch t {
	case TagOverlay:
		return "overlay"
	case TagHelper:
		return "helper"
	default:
		return "model"
	}
}

// Node is one element of the scene graph. Transform is relative to the parent.
type Node struct {
	Name      string
	Tag       Tag
	Transform math3d.Mat4
	Mesh      *Mesh
	Children  []*Node
	Hidden    bool
	// Billboard nodes are rotated to face the camera every frame.
	Billboard bool
}

// NewNode returns an identity-transformed node.
func NewNode(name string, tag Tag) *Node {
	return &Node{Name: name, Tag: tag, Transform: math3d.Identity()}
}

// Add appends children and returns n.
func (n *Node) Add(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Remove detaches child. It reports whether child was found.
func (n *Node) Remove(child *Node) bool {
	for i, c := range n.Children {
		if c == child {
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			return true
		}
	}
	return false
}

// Walk visits n and its descendants depth first with their world
// transforms. Returning false from fn skips the node's children.
func (n *Node) Walk(parent math3d.Mat4, fn func(node *Node, world math3d.Mat4) bool) {
	world := parent.Mul(n.Transform)
	if !fn(n, world) {
		return
	}
	for _, c := range n.Children {
		c.Walk(world, fn)
	}
}

// Scene is a decoded model. Warnings collects non-fatal problems such as
// missing optional textures.
type Scene struct {
	Name     string
	Root     *Node
	Warnings []string
}

// NewScene returns a scene with an empty model root.
func NewScene(name string) *Scene {
	return &Scene{Name: name, Root: NewNode(name, TagModel)}
}

// Warn records a non-fatal problem.
func (s *Scene) Warn(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

// Stats summarises the renderable geometry of a scene.
type Stats struct {
	Nodes     int
	Meshes    int
	Vertices  int
	Triangles int
	Materials int
}

// Stats counts model geometry, ignoring overlays and helpers.
func (s *Scene) Stats() Stats {
	var st Stats
	if s == nil || s.Root == nil {
		return st
	}
	s.Root.Walk(math3d.Identity(), func(n *Node, _ math3d.Mat4) bool {
		if n.Tag != TagModel {
			return false
		}
		st.Nodes++
		if n.Mesh != nil {
			st.Meshes++
			st.Vertices += len(n.Mesh.Vertices)
			st.Triangles += len(n.Mesh.Faces)
			st.Materials += len(n.Mesh.Materials)
		}
		return true
	})
	return st
}

// WorldBounds returns the world-space box of every visible node accepted by
// keep. Subtrees of rejected nodes are skipped.
func (s *Scene) WorldBounds(keep func(*Node) bool) math3d.Box3 {
	box := math3d.EmptyBox3()
	if s == nil || s.Root == nil {
		return box
	}
	s.Root.Walk(math3d.Identity(), func(n *Node, world math3d.Mat4) bool {
		if !keep(n) {
			return false
		}
		if n.Mesh != nil {
			for _, v := range n.Mesh.Vertices {
				box = box.ExpandPoint(world.MulVec3(v.Position))
			}
		}
		return true
	})
	return box
}

// IsModel is the WorldBounds filter for renderable model geometry.
func IsModel(n *Node) bool { return n.Tag == TagModel && !n.Hidden }
