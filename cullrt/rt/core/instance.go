package core

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

// Instance is a bounding-sphere proxy of one SDF volume.
type Instance struct {
	Position mgl32.Vec3
	Radius   float32
}

// InstanceStore is the read-only instance array shared by every frame.
type InstanceStore struct {
	instances []Instance
}

// NewInstanceStore copies instances; later changes to the input are not seen.
func NewInstanceStore(instances []Instance) *InstanceStore {
	own := make([]Instance, len(instances))
	copy(own, instances)
	return &InstanceStore{instances: own}
}

// NewRandomCloud scatters n instances uniformly in a cube of half-extent
// cloudRadius around the origin. The same seed always yields the same cloud.
func NewRandomCloud(n int, cloudRadius, instanceRadius float32, seed int64) *InstanceStore {
	rng := rand.New(rand.NewSource(seed))
	instances := make([]Instance, n)
	for i := range instances {
		instances[i] = Instance{
			Position: mgl32.Vec3{
				(rng.Float32()*2 - 1) * cloudRadius,
				(rng.Float32()*2 - 1) * cloudRadius,
				(rng.Float32()*2 - 1) * cloudRadius,
			},
			Radius: instanceRadius,
		}
	}
	return &InstanceStore{instances: instances}
}

func (s *InstanceStore) Len() int { return len(s.instances) }

func (s *InstanceStore) At(i int) Instance { return s.instances[i] }

// All returns the backing slice. Callers must not modify it.
func (s *InstanceStore) All() []Instance { return s.instances }
