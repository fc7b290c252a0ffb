package driven

// HostInfo defines the driven port for facts about the local machine.
type HostInfo interface {
	// ShortHostname returns the host name up to its first dot.
	ShortHostname() (string, error)
}
