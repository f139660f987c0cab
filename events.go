package impulse

import (
	"github.com/akmonengine/impulse/actor"
	"github.com/akmonengine/impulse/constraint"
)

const (
	CONTACT_BEGIN EventType = iota
	CONTACT_PERSIST
	CONTACT_END
	ON_SLEEP
	ON_WAKE
)

type pairKey struct {
	bodyA *actor.RigidBody
	bodyB *actor.RigidBody
}

// makePairKey creates a normalized pair key, the body with the lowest ID first
func makePairKey(bodyA, bodyB *actor.RigidBody) pairKey {
	if bodyB.ID < bodyA.ID {
		bodyA, bodyB = bodyB, bodyA
	}

	return pairKey{bodyA: bodyA, bodyB: bodyB}
}

type EventType uint8

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

// Contact events, BodyA always has the lowest ID
type ContactBeginEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
	// NormalImpulse is the total normal impulse the solver applied this step
	NormalImpulse float64
}

func (e ContactBeginEvent) Type() EventType { return CONTACT_BEGIN }

type ContactPersistEvent struct {
	BodyA         *actor.RigidBody
	BodyB         *actor.RigidBody
	NormalImpulse float64
}

func (e ContactPersistEvent) Type() EventType { return CONTACT_PERSIST }

type ContactEndEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e ContactEndEvent) Type() EventType { return CONTACT_END }

// Sleep/Wake events
type SleepEvent struct {
	Body *actor.RigidBody
}

func (e SleepEvent) Type() EventType { return ON_SLEEP }

type WakeEvent struct {
	Body *actor.RigidBody
}

func (e WakeEvent) Type() EventType { return ON_WAKE }

// EventListener - callback for events
type EventListener func(event Event)

// Events manager
type Events struct {
	// Listeners by event type
	listeners map[EventType][]EventListener

	// Event buffer to send at flush
	buffer []Event

	// Contact tracking for Begin/Persist/End detection, valued by normal impulse
	previousActivePairs map[pairKey]float64
	currentActivePairs  map[pairKey]float64

	sleepStates map[*actor.RigidBody]bool
}

func NewEvents() Events {
	return Events{
		listeners:           make(map[EventType][]EventListener),
		buffer:              make([]Event, 0, 256),
		previousActivePairs: make(map[pairKey]float64),
		currentActivePairs:  make(map[pairKey]float64),
		sleepStates:         make(map[*actor.RigidBody]bool),
	}
}

// Subscribe adds a listener for an event type
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// recordContacts registers the pairs touching this step, once solved
func (e *Events) recordContacts(contacts []*constraint.ContactConstraint) {
	for _, c := range contacts {
		if c.IsDegenerate() || len(c.Points) == 0 {
			continue
		}
		pair := makePairKey(c.Body1(), c.Body2())
		e.currentActivePairs[pair] += c.TotalNormalImpulse()
	}
}

// forget drops every tracked state of body, used when it leaves the world
func (e *Events) forget(body *actor.RigidBody) {
	delete(e.sleepStates, body)
	for pair := range e.previousActivePairs {
		if pair.bodyA == body || pair.bodyB == body {
			delete(e.previousActivePairs, pair)
		}
	}
	for pair := range e.currentActivePairs {
		if pair.bodyA == body || pair.bodyB == body {
			delete(e.currentActivePairs, pair)
		}
	}
}

// processContactEvents compares current and previous pairs to detect Begin/Persist/End
func (e *Events) processContactEvents() {
	for pair, impulse := range e.currentActivePairs {
		// Skip if both bodies are sleeping, to avoid spamming events
		if pair.bodyA.IsSleeping && pair.bodyB.IsSleeping {
			continue
		}

		if _, ok := e.previousActivePairs[pair]; ok {
			e.buffer = append(e.buffer, ContactPersistEvent{
				BodyA:         pair.bodyA,
				BodyB:         pair.bodyB,
				NormalImpulse: impulse,
			})
		} else {
			e.buffer = append(e.buffer, ContactBeginEvent{
				BodyA:         pair.bodyA,
				BodyB:         pair.bodyB,
				NormalImpulse: impulse,
			})
		}
	}

	for pair := range e.previousActivePairs {
		if _, ok := e.currentActivePairs[pair]; !ok {
			e.buffer = append(e.buffer, ContactEndEvent{
				BodyA: pair.bodyA,
				BodyB: pair.bodyB,
			})
		}
	}

	// Swap for next step and clear current
	e.previousActivePairs, e.currentActivePairs = e.currentActivePairs, e.previousActivePairs
	clear(e.currentActivePairs)
}

func (e *Events) processSleepEvents(bodies []*actor.RigidBody) {
	for _, body := range bodies {
		if !body.IsDynamic() {
			continue
		}

		trackedState, exists := e.sleepStates[body]
		if !exists {
			e.sleepStates[body] = body.IsSleeping
			continue
		}

		if !trackedState && body.IsSleeping {
			e.buffer = append(e.buffer, SleepEvent{Body: body})
			e.sleepStates[body] = true
		} else if trackedState && !body.IsSleeping {
			e.buffer = append(e.buffer, WakeEvent{Body: body})
			e.sleepStates[body] = false
		}
	}
}

// flush sends all buffered events and clears the buffer
func (e *Events) flush() {
	e.processContactEvents()

	for _, event := range e.buffer {
		if listeners, ok := e.listeners[event.Type()]; ok {
			for _, listener := range listeners {
				listener(event)
			}
		}
	}
	e.buffer = e.buffer[:0]
}
