package diag

type Snapshot struct {
	// Core metrics
	NotesIngested     uint64
	NotesByKind       map[int]uint64
	FramesDropped     uint64
	ProtocolErrors    uint64
	PublishesAccepted uint64
	PublishesRejected uint64
	SubsClosed        uint64
	UnknownIDsDropped uint64

	// Connection status, keyed by relay URL
	RelayStatus map[string]string
	ColdRelays  uint64

	// Rate metrics
	NotesPerSecond float64

	// System metrics
	UptimeSeconds      float64
	ChannelUtilization float64

	// Error breakdown
	ErrorsTotal     uint64
	ErrorsByContext map[string]uint64
	RecentErrors    []string
}

type Reader interface {
	Snapshot() Snapshot
}
