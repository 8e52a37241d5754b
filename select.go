package crouton

// maxSelectSources bounds Select to a small fixed-size array of sources, the
// same limit the original imposed to avoid a heap allocation per Select
// (original_source/src/Select.cc).
const maxSelectSources = 8

// Select multiplexes up to maxSelectSources Selectables, letting a
// coroutine Await whichever becomes ready first (spec.md §4.8). Once a
// source index is returned from Await it must be re-enabled before it can
// be selected again. Close must be called when done, since Go has no
// deterministic destructor to unregister the onReady callbacks.
type Select struct {
	sources [maxSelectSources]Selectable
	enabled [maxSelectSources]bool
	ready   [maxSelectSources]bool
	susp    Suspension
}

// NewSelect builds a Select over the given sources (at most
// maxSelectSources of them).
func NewSelect(sources ...Selectable) *Select {
	if len(sources) > maxSelectSources {
		panic("crouton: too many Select sources")
	}
	s := &Select{}
	copy(s.sources[:], sources)
	return s
}

// Enable begins watching the source at index.
func (s *Select) Enable(index int) {
	if s.sources[index] == nil {
		panic("crouton: Select.Enable on an empty slot")
	}
	if !s.enabled[index] {
		s.enabled[index] = true
		s.sources[index].OnReady(func() { s.notify(index) })
	}
}

// EnableAll enables every non-empty source.
func (s *Select) EnableAll() *Select {
	for i := range s.sources {
		if s.sources[i] == nil {
			break
		}
		s.Enable(i)
	}
	return s
}

// Await suspends the calling coroutine until one enabled source becomes
// ready, then returns its index (or -1 if nothing was enabled).
func (s *Select) Await(yield func()) int {
	for i := range s.ready {
		if s.ready[i] {
			s.ready[i] = false
			return i
		}
	}
	if !s.anyEnabled() {
		logDebug("Select awaited with nothing enabled", nil)
		return -1
	}
	sched := Current()
	s.susp = sched.suspend(currentHandle())
	yield()
	for i := range s.ready {
		if s.ready[i] {
			s.ready[i] = false
			return i
		}
	}
	return -1
}

func (s *Select) anyEnabled() bool {
	for _, e := range s.enabled {
		if e {
			return true
		}
	}
	return false
}

func (s *Select) notify(index int) {
	s.ready[index] = true
	s.enabled[index] = false
	s.susp.WakeUp()
}

// Close unregisters this Select from every still-enabled source. Must be
// called once the Select is no longer needed.
func (s *Select) Close() {
	for i, enabled := range s.enabled {
		if enabled && s.sources[i] != nil {
			s.sources[i].OnReady(nil)
			s.enabled[i] = false
		}
	}
}
