// Package vecmath provides the small vector and quaternion types shared by
// the simulation and wire codec. Positions in GameState use Vector2 alone;
// Vector3 and Quaternion exist for the replay snapshot's optional rotation
// channel (internal/replay) and are not otherwise on the simulation's hot
// path.
package vecmath

// Vector2 is a 2D point or displacement, float32 to match the wire format.
type Vector2 struct {
	X, Y float32
}

func (v Vector2) Add(other Vector2) Vector2 {
	return Vector2{X: v.X + other.X, Y: v.Y + other.Y}
}

func (v Vector2) Sub(other Vector2) Vector2 {
	return Vector2{X: v.X - other.X, Y: v.Y - other.Y}
}

func (v Vector2) Mul(scalar float32) Vector2 {
	return Vector2{X: v.X * scalar, Y: v.Y * scalar}
}

// Vector3 is a 3D vector used only by the replay snapshot's position field.
type Vector3 struct {
	X, Y, Z float32
}

func (v Vector3) Add(other Vector3) Vector3 {
	return Vector3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

func (v Vector3) Sub(other Vector3) Vector3 {
	return Vector3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

func (v Vector3) Dot(other Vector3) float32 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Quaternion is a 3D rotation, carried through replay snapshots unused by
// the 2D movement rule itself.
type Quaternion struct {
	X, Y, Z, W float32
}

// Identity returns the rotation-free quaternion.
func Identity() Quaternion {
	return Quaternion{W: 1}
}

func (q Quaternion) Mul(other Quaternion) Quaternion {
	return Quaternion{
		W: q.W*other.W - q.X*other.X - q.Y*other.Y - q.Z*other.Z,
		X: q.W*other.X + q.X*other.W + q.Y*other.Z - q.Z*other.Y,
		Y: q.W*other.Y - q.X*other.Z + q.Y*other.W + q.Z*other.X,
		Z: q.W*other.Z + q.X*other.Y - q.Y*other.X + q.Z*other.W,
	}
}
