package client

import (
	"net"
	"net/netip"

	"github.com/quotewire/quotewire-go/qlog"
	"github.com/quotewire/quotewire-go/wire"
)

// pinger sends keepalive datagrams at a fixed interval. It idles until it
// is given a target address, learned from the first received quote
// datagram, and gives up after a run of consecutive send failures.
type pinger struct {
	conn    *net.UDPConn
	opts    options
	logger  qlog.Logger
	startCh chan netip.AddrPort
	quit    chan struct{}
	done    chan struct{}
}

func newPinger(conn *net.UDPConn, o options) *pinger {
	p := &pinger{
		conn:    conn,
		opts:    o,
		logger:  o.logger,
		startCh: make(chan netip.AddrPort, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *pinger) run() {
	defer close(p.done)

	var target netip.AddrPort
	select {
	case <-p.quit:
		return
	case target = <-p.startCh:
	}
	p.logger.Infof("pinger started for %s", target)

	buf, err := wire.NewDatagram(wire.PingPayload).Encode()
	if err != nil {
		p.logger.Errorf("pinger unable to frame ping: %v", err)
		return
	}

	t := p.opts.newPingTicker(p.opts.pingInterval)
	defer t.Stop()

	errCount := 0
	for {
		select {
		case <-p.quit:
			return
		case addr := <-p.startCh:
			p.logger.Warnf("pinger already targets %s, ignoring start for %s", target, addr)
		case <-t.C():
			if _, err := p.conn.WriteToUDPAddrPort(buf, target); err != nil {
				errCount++
				p.logger.Warnf("send ping error(%d): %v", errCount, err)
				if errCount > p.opts.maxErrors {
					p.logger.Errorf("pinger giving up after %d failures", errCount)
					return
				}
				continue
			}
			errCount = 0
		}
	}
}

// start arms the pinger with its target. Further calls are ignored.
func (p *pinger) start(target netip.AddrPort) {
	select {
	case p.startCh <- target:
	default:
	}
}

// stop terminates the worker and waits for it.
func (p *pinger) stop() {
	close(p.quit)
	<-p.done
}
