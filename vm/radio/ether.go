package radio

import "sync"

// Ether is an in-memory stand-in for the 2.4 GHz channel: it delivers a
// transmitted frame to every joined Radio tuned to the same group/channel,
// other than the sender. Real hardware has no such central dispatcher; this
// exists purely so package radio (and its tests) can exercise send/receive
// round-trips without real antennas (spec §8 S5).
type Ether struct {
	mu    sync.Mutex
	peers []*Radio
}

// NewEther creates an empty shared medium.
func NewEther() *Ether {
	return &Ether{}
}

func (e *Ether) join(r *Radio) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.peers = append(e.peers, r)
}

func (e *Ether) transmit(sender *Radio, group, channel byte, framed []byte) {
	e.mu.Lock()
	peers := make([]*Radio, len(e.peers))
	copy(peers, e.peers)
	e.mu.Unlock()

	for _, p := range peers {
		if p == sender {
			continue
		}
		p.mu.Lock()
		tuned := p.group == group && p.channel == channel && p.state != Uninitialized
		p.mu.Unlock()
		if !tuned {
			continue
		}
		p.deliver(framed)
	}
}
