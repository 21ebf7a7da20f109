package host

import "io"

// pipeTransport implements Transport over one io.Pipe half in each
// direction, letting a Host and a device.Device run wired together in a
// single process without a real serial port (spec §6, used by the S3
// liveness test and by any caller wiring blockhost/blockdevice together for
// local testing).
type pipeTransport struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (p *pipeTransport) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipeTransport) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p *pipeTransport) Close() error {
	rerr := p.r.Close()
	werr := p.w.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}

// NewPipePair returns two Transports wired to each other: bytes written to
// one arrive as reads on the other, in both directions.
func NewPipePair() (Transport, Transport) {
	aR, aW := io.Pipe()
	bR, bW := io.Pipe()
	return &pipeTransport{r: aR, w: bW}, &pipeTransport{r: bR, w: aW}
}
