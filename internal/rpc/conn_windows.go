//go:build windows

package rpc

import (
	"context"
	"net"
	"os"
	"time"
)

// dialSocket opens a Windows named pipe (\\.\pipe\<name>). The pipe must
// already exist; creation is the host application's job.
func dialSocket(ctx context.Context, path string) (net.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	return &pipeConn{f: f}, nil
}

// pipeConn adapts an *os.File pipe handle to net.Conn. Deadline support
// depends on the runtime poller; SetDeadline may return os.ErrNoDeadline,
// which callers tolerate.
type pipeConn struct {
	f *os.File
}

func (p *pipeConn) Read(b []byte) (int, error)  { return p.f.Read(b) }
func (p *pipeConn) Write(b []byte) (int, error) { return p.f.Write(b) }
func (p *pipeConn) Close() error                { return p.f.Close() }

func (p *pipeConn) SetDeadline(t time.Time) error      { return p.f.SetDeadline(t) }
func (p *pipeConn) SetReadDeadline(t time.Time) error  { return p.f.SetReadDeadline(t) }
func (p *pipeConn) SetWriteDeadline(t time.Time) error { return p.f.SetWriteDeadline(t) }

func (p *pipeConn) LocalAddr() net.Addr  { return pipeAddr(p.f.Name()) }
func (p *pipeConn) RemoteAddr() net.Addr { return pipeAddr(p.f.Name()) }

type pipeAddr string

func (a pipeAddr) Network() string { return "pipe" }
func (a pipeAddr) String() string  { return string(a) }
