package siteimages

import (
	"context"
	"strings"
	"sync"
)

// Slot binds a resolver to one consumer with a lifetime, such as a rendered
// component or a long-lived view. It refetches only when the key changes or
// Refresh is called, and drops results that arrive after Close or after the
// key has moved on.
type Slot struct {
	resolver *Resolver
	onChange func(Result)

	mu          sync.Mutex
	key         string
	bound       bool
	closed      bool
	gen         uint64
	state       Result
	unsubscribe func()
}

// Bind creates a Slot. onChange, when non-nil, receives every published state;
// it is called without internal locks held and may run on a fetch goroutine.
func (r *Resolver) Bind(onChange func(Result)) *Slot {
	s := &Slot{resolver: r, onChange: onChange}
	s.unsubscribe = r.cache.Subscribe(s.cacheChanged)
	return s
}

// SetKey points the slot at key. Setting the same key again is a no-op.
func (s *Slot) SetKey(ctx context.Context, key string) {
	key = strings.TrimSpace(key)
	s.mu.Lock()
	if s.closed || (s.bound && s.key == key) {
		s.mu.Unlock()
		return
	}
	s.key = key
	s.bound = true
	s.mu.Unlock()
	s.load(ctx)
}

// Refresh resolves the current key again, as a freshly mounted consumer would.
func (s *Slot) Refresh(ctx context.Context) {
	s.mu.Lock()
	ok := s.bound && !s.closed
	s.mu.Unlock()
	if ok {
		s.load(ctx)
	}
}

// State returns the latest published result.
func (s *Slot) State() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close detaches the slot. Pending fetches complete but their results are ignored.
func (s *Slot) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	unsubscribe := s.unsubscribe
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (s *Slot) load(ctx context.Context) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	key := s.key
	if key == "" {
		s.state = Result{Err: ErrEmptyKey}
		state := s.state
		s.mu.Unlock()
		s.publish(state)
		return
	}
	if img, ok := s.resolver.cache.Fresh(key); ok {
		s.state = Result{Key: key, Image: &img}
		state := s.state
		s.mu.Unlock()
		s.publish(state)
		return
	}
	s.state = Result{Key: key, Loading: true}
	state := s.state
	s.mu.Unlock()
	s.publish(state)

	go func() {
		res := s.resolver.Resolve(ctx, key)
		s.mu.Lock()
		if s.closed || gen != s.gen {
			s.mu.Unlock()
			return
		}
		s.state = res
		s.mu.Unlock()
		s.publish(res)
	}()
}

// cacheChanged pushes writes for the current key into the slot, superseding any
// in-flight fetch.
func (s *Slot) cacheChanged(change Change) {
	s.mu.Lock()
	if s.closed || !s.bound || change.Key != s.key {
		s.mu.Unlock()
		return
	}
	s.gen++
	res := Result{Key: change.Key}
	if change.Image != nil {
		img := cloneImage(*change.Image)
		res.Image = &img
	}
	s.state = res
	s.mu.Unlock()
	s.publish(res)
}

func (s *Slot) publish(res Result) {
	if s.onChange != nil {
		s.onChange(res)
	}
}

// FamilySlot is the prefix-lookup counterpart of Slot.
type FamilySlot struct {
	resolver *Resolver
	onChange func(Family)

	mu       sync.Mutex
	prefix   string
	fallback string
	bound    bool
	closed   bool
	gen      uint64
	state    Family
}

// BindFamily creates a FamilySlot.
func (r *Resolver) BindFamily(onChange func(Family)) *FamilySlot {
	return &FamilySlot{resolver: r, onChange: onChange}
}

// SetQuery points the slot at prefix with an optional fallback key. An
// unchanged pair is a no-op.
func (s *FamilySlot) SetQuery(ctx context.Context, prefix, fallbackKey string) {
	prefix = strings.TrimSpace(prefix)
	fallbackKey = strings.TrimSpace(fallbackKey)
	s.mu.Lock()
	if s.closed || (s.bound && s.prefix == prefix && s.fallback == fallbackKey) {
		s.mu.Unlock()
		return
	}
	s.prefix, s.fallback, s.bound = prefix, fallbackKey, true
	s.mu.Unlock()
	s.load(ctx)
}

// Refresh repeats the current lookup.
func (s *FamilySlot) Refresh(ctx context.Context) {
	s.mu.Lock()
	ok := s.bound && !s.closed
	s.mu.Unlock()
	if ok {
		s.load(ctx)
	}
}

// State returns the latest published family.
func (s *FamilySlot) State() Family {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Close detaches the slot.
func (s *FamilySlot) Close() {
	s.mu.Lock()
	s.closed = true
	s.gen++
	s.mu.Unlock()
}

func (s *FamilySlot) load(ctx context.Context) {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	prefix, fallback := s.prefix, s.fallback
	s.state = Family{Prefix: prefix, Loading: true}
	state := s.state
	s.mu.Unlock()
	s.publish(state)

	go func() {
		fam := s.resolver.ResolveFamily(ctx, prefix, fallback)
		s.mu.Lock()
		if s.closed || gen != s.gen {
			s.mu.Unlock()
			return
		}
		s.state = fam
		s.mu.Unlock()
		s.publish(fam)
	}()
}

func (s *FamilySlot) publish(f Family) {
	if s.onChange != nil {
		s.onChange(f)
	}
}
