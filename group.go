package timelinex

// TrackGroup is an ordered collection of tracks. Insertion order is the
// callback fan-out order.
//
// The group owns its tracks. Mutations never edit the backing slice in
// place: Add appends, Remove and Release build a fresh slice. A fan-out that
// captured the slice before a callback added or removed tracks therefore
// keeps walking a consistent snapshot.
type TrackGroup struct {
	tracks []*Track
}

// Add appends track, detaching it from its previous group first.
func (g *TrackGroup) Add(track *Track) *Track {
	if track.parent != nil && track.parent != g {
		track.parent.Remove(track)
	}
	if track.parent == g {
		return track
	}
	track.parent = g
	g.tracks = append(g.tracks, track)
	return track
}

// AddTrack builds a track from cfg and appends it.
func (g *TrackGroup) AddTrack(cfg TrackConfig) (*Track, error) {
	track, err := NewTrack(cfg)
	if err != nil {
		return nil, err
	}
	return g.Add(track), nil
}

// GetTracksByID returns every track tagged id, in order.
func (g *TrackGroup) GetTracksByID(id string) []*Track {
	var out []*Track
	for _, t := range g.tracks {
		if t.id == id {
			out = append(out, t)
		}
	}
	return out
}

// StopTrack kills track. It stays in the group until the next Release.
func (g *TrackGroup) StopTrack(track *Track) {
	track.Kill()
}

// Remove detaches track from the group immediately.
func (g *TrackGroup) Remove(track *Track) {
	out := make([]*Track, 0, len(g.tracks))
	for _, t := range g.tracks {
		if t != track {
			out = append(out, t)
		}
	}
	g.tracks = out
	if track.parent == g {
		track.parent = nil
	}
}

// Release drops every dead or expired track.
func (g *TrackGroup) Release() {
	out := make([]*Track, 0, len(g.tracks))
	for _, t := range g.tracks {
		if t.alive && !t.Expired() {
			out = append(out, t)
			continue
		}
		t.parent = nil
	}
	g.tracks = out
}

// RemoveAll clears the group.
func (g *TrackGroup) RemoveAll() {
	for _, t := range g.tracks {
		t.parent = nil
	}
	g.tracks = nil
}

// Tracks returns a copy of the member list.
func (g *TrackGroup) Tracks() []*Track {
	out := make([]*Track, len(g.tracks))
	copy(out, g.tracks)
	return out
}

// Len returns the number of members, dead ones included.
func (g *TrackGroup) Len() int { return len(g.tracks) }

// Tick advances every member to time. The first callback error aborts the
// rest of the fan-out.
func (g *TrackGroup) Tick(time float64) error {
	for _, t := range g.tracks {
		if err := t.Tick(time); err != nil {
			return err
		}
	}
	return nil
}

// Nest builds a track that drives child on time relative to the track's
// start, so a group can be scheduled as one block inside another.
// cfg.OnUpdate, if set, runs after child has ticked.
func Nest(child Ticker, cfg TrackConfig) (*Track, error) {
	var track *Track
	update := cfg.OnUpdate
	cfg.OnUpdate = func(local, p float64) error {
		if err := child.Tick(local - track.startTime); err != nil {
			return err
		}
		if update != nil {
			return update(local, p)
		}
		return nil
	}
	track, err := NewTrack(cfg)
	return track, err
}
