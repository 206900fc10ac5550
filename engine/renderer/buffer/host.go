package buffer

// Host is a Buffer backed by ordinary host memory. The CPU back end hands these out.
type Host struct {
	label string
	usage Usage
	data  []byte
}

var _ Buffer = &Host{}

// NewHost allocates a zeroed host buffer.
//
// Parameters:
//   - label: the debug label for the buffer
//   - size: the size in bytes
//   - usage: how the buffer will be bound
//
// Returns:
//   - *Host: the new buffer
func NewHost(label string, size uint64, usage Usage) *Host {
	return &Host{
		label: label,
		usage: usage,
		data:  make([]byte, size),
	}
}

func (h *Host) Label() string {
	return h.label
}

func (h *Host) Size() uint64 {
	return uint64(len(h.data))
}

func (h *Host) Usage() Usage {
	return h.usage
}

func (h *Host) Release() {
	h.data = nil
}

// Bytes returns the backing memory. It is nil once the buffer is released.
func (h *Host) Bytes() []byte {
	return h.data
}

// Released reports whether Release has been called.
func (h *Host) Released() bool {
	return h.data == nil
}
