package constraint

import (
	"github.com/akmonengine/impulse/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Cached normals must stay this aligned for a point to be warm started
const warmStartNormalTolerance = 0.95

// ContactKey identifies a contact point across steps. Body order is the one
// delivered by the narrow phase, which is expected to keep it stable.
type ContactKey struct {
	Body1   int
	Body2   int
	Feature uint32
}

type cachedImpulse struct {
	normal         mgl64.Vec3
	normalImpulse  float64
	tangentImpulse [2]float64
}

// ContactCache keeps the accumulated impulses of the last step for warm starting
type ContactCache struct {
	entries map[ContactKey]cachedImpulse
	swap    map[ContactKey]cachedImpulse
}

func NewContactCache() *ContactCache {
	return &ContactCache{
		entries: make(map[ContactKey]cachedImpulse),
		swap:    make(map[ContactKey]cachedImpulse),
	}
}

func keyOf(c *ContactConstraint, p *ContactPoint) ContactKey {
	return ContactKey{Body1: c.body1.ID, Body2: c.body2.ID, Feature: p.FeatureID}
}

// Lookup seeds the points of c with the impulses cached for the same key and a
// matching normal. It returns the number of seeded points.
func (cc *ContactCache) Lookup(c *ContactConstraint) int {
	if c.degenerate {
		return 0
	}

	matched := 0
	for i := range c.Points {
		p := &c.Points[i]
		entry, ok := cc.entries[keyOf(c, p)]
		if !ok || entry.normal.Dot(c.Normal) < warmStartNormalTolerance {
			continue
		}

		p.NormalImpulse = entry.normalImpulse
		p.TangentImpulse = entry.tangentImpulse
		matched++
	}

	return matched
}

// Store replaces the cache content with the impulses of contacts. Points that did
// not persist this step are dropped.
func (cc *ContactCache) Store(contacts []*ContactConstraint) {
	clear(cc.swap)

	for _, c := range contacts {
		if c.degenerate {
			continue
		}
		for i := range c.Points {
			p := &c.Points[i]
			cc.swap[keyOf(c, p)] = cachedImpulse{
				normal:         c.Normal,
				normalImpulse:  p.NormalImpulse,
				tangentImpulse: p.TangentImpulse,
			}
		}
	}

	cc.entries, cc.swap = cc.swap, cc.entries
}

// Forget drops every entry involving body
func (cc *ContactCache) Forget(body *actor.RigidBody) {
	for key := range cc.entries {
		if key.Body1 == body.ID || key.Body2 == body.ID {
			delete(cc.entries, key)
		}
	}
}

func (cc *ContactCache) Len() int {
	return len(cc.entries)
}

func (cc *ContactCache) Clear() {
	clear(cc.entries)
}
