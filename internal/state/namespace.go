package state

import (
	"fmt"
	"strings"
)

// Namespace partitions the key space by record kind.
type Namespace string

const (
	NamespaceNode      Namespace = "nodes"
	NamespaceNodeState Namespace = "nodestates"
	NamespaceChannel   Namespace = "channels"
	NamespaceAllowlist Namespace = "allowlists"
	NamespaceTracker   Namespace = "trackers"
)

// keySeparator joins a namespace tag and an entity id.
const keySeparator = "/"

// Policy describes which mutations a namespace accepts.
type Policy struct {
	// Upsert allows Upsert to create the key when it is absent.
	// Insert-once namespaces must go through InsertOnly instead.
	Upsert bool

	// Deletable allows Delete.
	Deletable bool
}

var policies = map[Namespace]Policy{
	NamespaceNode:      {Upsert: false, Deletable: true},
	NamespaceNodeState: {Upsert: true, Deletable: true},
	NamespaceChannel:   {Upsert: false, Deletable: false},
	NamespaceAllowlist: {Upsert: true, Deletable: false},
	NamespaceTracker:   {Upsert: false, Deletable: false},
}

// Policy returns the namespace's mutation policy and whether it is known.
func (n Namespace) Policy() (Policy, bool) {
	p, ok := policies[n]
	return p, ok
}

// Key builds the key for entity id in this namespace.
func (n Namespace) Key(id string) Key {
	return Key(string(n) + keySeparator + id)
}

// Prefix returns the prefix shared by every key in this namespace.
func (n Namespace) Prefix() string {
	return string(n) + keySeparator
}

// Key identifies one entry. The namespace tag is part of the key, so keys
// from different namespaces never collide.
type Key string

// Split returns the namespace and entity id of k.
// ok is false if k has no separator.
func (k Key) Split() (ns Namespace, id string, ok bool) {
	tag, rest, found := strings.Cut(string(k), keySeparator)
	if !found {
		return "", "", false
	}
	return Namespace(tag), rest, true
}

// Namespace returns the namespace tag of k, or "" if k is malformed.
func (k Key) Namespace() Namespace {
	ns, _, _ := k.Split()
	return ns
}

// policyFor returns the policy governing local mutations of k.
func policyFor(op string, k Key) (Policy, error) {
	ns, id, ok := k.Split()
	if !ok || id == "" {
		return Policy{}, newError(ErrCodeInvalidKey, op, k, "key must have the form <namespace>/<id>")
	}
	p, known := ns.Policy()
	if !known {
		return Policy{}, newError(ErrCodeInvalidKey, op, k, fmt.Sprintf("unknown namespace %q", ns))
	}
	return p, nil
}
