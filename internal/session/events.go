package session

// Events the session posts to the coordinator queue

// PlaylistChanged is posted once per thaw that changed the region list
type PlaylistChanged struct {
	Playlist ID
}

// RegionsVisibilityChanged asks displays to refresh the hidden state of
// the listed regions.
type RegionsVisibilityChanged struct {
	Playlist ID
	Regions  []ID
}

type TimeDomainParentChanged struct {
	Playlist ID
	Owner    Owner
}

type TransportChanged struct {
	Rolling   bool
	Recording bool
}

// OwnerKind says who a playlist takes its time domain from
type OwnerKind int

const (
	OwnerNone OwnerKind = iota
	OwnerSession
	OwnerTrack
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerSession:
		return "session"
	case OwnerTrack:
		return "track"
	default:
		return "none"
	}
}

// Owner is the time-domain parent of a playlist. Track is only meaningful
// for OwnerTrack.
type Owner struct {
	Kind  OwnerKind `yaml:"kind"`
	Track ID        `yaml:"track,omitempty"`
}

func (o Owner) IsTrack(id ID) bool { return o.Kind == OwnerTrack && o.Track == id }

// Unclaimed reports whether a track may take the playlist over
func (o Owner) Unclaimed() bool { return o.Kind == OwnerNone || o.Kind == OwnerSession }
