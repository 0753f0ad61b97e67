package server

import (
	"net"
	"time"

	pgwmetrics "github.com/placesgw/places-gateway/metrics"
)

type monitorableConnection struct {
	net.Conn
	metrics pgwmetrics.MetricsEngine
}

type monitorableListener struct {
	net.Listener
	metrics pgwmetrics.MetricsEngine
}

func (l *monitorableConnection) Close() error {
	err := l.Conn.Close()
	l.metrics.RecordConnectionClose(err == nil)
	return err
}

func (ln *monitorableListener) Accept() (net.Conn, error) {
	conn, err := ln.Listener.Accept()
	if err != nil {
		ln.metrics.RecordConnectionAccept(false)
		return conn, err
	}
	ln.metrics.RecordConnectionAccept(true)
	return &monitorableConnection{
		conn,
		ln.metrics,
	}, nil
}

// tcpKeepAliveListener copies the keep-alive behavior of Server.ListenAndServe()
// so connections drop when the peer machine vanishes.
type tcpKeepAliveListener struct {
	*net.TCPListener
}

func (ln tcpKeepAliveListener) Accept() (net.Conn, error) {
	tc, err := ln.AcceptTCP()
	if err != nil {
		return nil, err
	}
	tc.SetKeepAlive(true)
	tc.SetKeepAlivePeriod(3 * time.Minute)
	return tc, nil
}
