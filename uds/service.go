package uds

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zeptools/gw-dbbridge/clients"
	"github.com/zeptools/gw-dbbridge/script"
	"github.com/zeptools/gw-dbbridge/svc"
)

var (
	ErrAuthRequired = errors.New("authentication required")
	ErrRateLimited  = errors.New("rate limit exceeded")
)

// RateLimiter throttles call and get frames per host key.
type RateLimiter interface {
	Allow(key string, now time.Time) bool
	Forget(key string)
}

type Service struct {
	Ctx        context.Context    // Service Context
	cancel     context.CancelFunc // Service Context CancelFunc
	mu         sync.Mutex
	state      int        // internal service state
	done       chan error // Shutdown Error Channel
	SocketPath string
	Modules    map[string]*script.Module
	// Authenticate, when set, must accept the first frame's token.
	Authenticate Authenticator
	// Limiter, when set, is consulted before every call and get.
	Limiter  RateLimiter
	listener net.Listener
	conns    sync.WaitGroup
}

// Ensure uds.Service implements svc.Service interface
var _ svc.Service = (*Service)(nil)

func (s *Service) Name() string {
	return "UDSService"
}

func NewService(parentCtx context.Context, sockPath string, modules []*script.Module, auth Authenticator) *Service {
	svcCtx, svcCancel := context.WithCancel(parentCtx)
	modMap := make(map[string]*script.Module, len(modules))
	for _, m := range modules {
		modMap[m.Name()] = m
	}
	return &Service{
		Ctx:          svcCtx,
		cancel:       svcCancel,
		state:        svc.StateREADY,
		done:         make(chan error, 1),
		SocketPath:   sockPath,
		Modules:      modMap,
		Authenticate: auth,
	}
}

// Start the unix socket service in the background.
// Bootstrapping errors are returned immediately.
// Runtime errors are pushed into Done().
func (s *Service) Start() error {
	// clean up old socket if any
	_ = os.Remove(s.SocketPath)
	listener, err := net.Listen("unix", s.SocketPath)
	if err != nil {
		return fmt.Errorf("listen(%q) failed: %v", s.SocketPath, err)
	}
	s.listener = listener
	// tighten permissions immediately after binding
	if err = os.Chmod(s.SocketPath, 0600); err != nil {
		_ = s.listener.Close()
		_ = os.Remove(s.SocketPath)
		return fmt.Errorf("chmod(%q) failed: %w", s.SocketPath, err)
	}
	s.setState(svc.StateRUNNING)
	go s.run()
	return nil
}

func (s *Service) Stop() {
	s.cancel()
	s.setState(svc.StateSTOPPED)
	log.Println("[INFO][UDS] service stopped")
}

func (s *Service) Done() <-chan error {
	return s.done
}

func (s *Service) State() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Service) setState(state int) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// run - internal run loop
func (s *Service) run() {
	// goroutine to clean up when context is done
	go func() {
		<-s.Ctx.Done()
		log.Printf("[INFO][UDS] stopping")
		if err := s.listener.Close(); err != nil {
			log.Printf("[ERROR][UDS] cannot close listener: %v", err)
		}
		// To avoid TOCTOU race, just try removing before checking if it exists.
		if err := os.Remove(s.SocketPath); err != nil && !os.IsNotExist(err) {
			log.Printf("[ERROR][UDS] cannot remove socket file: %v", err)
		}
	}()

	// --- Serving loop ---
	log.Printf("[INFO][UDS] listening on %q ...\n", s.SocketPath)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				log.Printf("[INFO][UDS] socket closed")
				// hosts release their objects before Done fires
				s.conns.Wait()
				s.done <- nil // also a clean shutdown
				return
			}
			// For transient errors, don’t kill the loop
			log.Println("[ERROR][UDS] accept failed:", err)
			continue
		}
		log.Println("[INFO][UDS] new host connection")
		s.conns.Add(1)
		go s.handleConn(conn)
	}
}

// hostConn is the per-connection state of one scripting host.
type hostConn struct {
	ctx     context.Context
	authed  bool
	host    clients.HostConf
	handles *HandleTable
	key     string // throttle key: host id, or a per-connection id for anonymous hosts
}

func (s *Service) handleConn(c net.Conn) {
	defer s.conns.Done()
	connCtx, connCancel := context.WithCancel(s.Ctx)
	defer connCancel()
	go func() {
		<-connCtx.Done()
		_ = c.Close()
	}()

	hc := &hostConn{
		ctx:     connCtx,
		authed:  s.Authenticate == nil,
		handles: NewHandleTable(),
		key:     "conn:" + uuid.NewString(),
	}
	defer func() {
		// named hosts keep their bucket across reconnects
		if s.Limiter != nil && hc.host.ID == "" {
			s.Limiter.Forget(hc.key)
		}
		if n := hc.handles.ReleaseAll(); n > 0 {
			log.Printf("[INFO][UDS] released %d objects of host %q", n, hc.host.ID)
		}
		if err := c.Close(); err != nil {
			if !errors.Is(err, net.ErrClosed) {
				log.Printf("[ERROR][UDS] closing connection: %v\n", err)
			}
		}
	}()

	scanner := bufio.NewScanner(c)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxFrameSize)
	writer := newFrameWriter(c)
	defer func() {
		log.Printf("[INFO][UDS] host %q: %d frames, %d bytes sent", hc.host.ID, writer.frames, writer.BytesWritten())
	}()

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Request
		var resp *Response
		if err := json.Unmarshal(line, &req); err != nil {
			resp = &Response{Error: fmt.Sprintf("malformed frame: %v", err)}
		} else {
			resp = s.handle(hc, &req)
		}
		if err := writer.writeResponse(resp); err != nil {
			log.Printf("[ERROR][UDS] write error: %v\n", err)
			return
		}
		if req.Op == OpQuit {
			return
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			_ = writer.writeResponse(&Response{Error: fmt.Sprintf("frame exceeds %d bytes", MaxFrameSize)})
		} else if !errors.Is(err, net.ErrClosed) {
			log.Printf("[ERROR][UDS] read error: %v\n", err)
		}
		return
	}
	log.Println("[INFO][UDS] host disconnected")
}

func (s *Service) handle(hc *hostConn, req *Request) *Response {
	value, err := s.dispatch(hc, req)
	if err != nil {
		return &Response{ID: req.ID, Error: err.Error()}
	}
	return &Response{ID: req.ID, OK: true, Value: value}
}

func (s *Service) dispatch(hc *hostConn, req *Request) (json.RawMessage, error) {
	switch req.Op {
	case OpQuit:
		return nil, nil
	case OpAuth:
		if s.Authenticate == nil {
			hc.authed = true
			return nil, nil
		}
		host, err := s.Authenticate(req.Token)
		if err != nil {
			log.Printf("[WARN][UDS] authentication failed: %v", err)
			return nil, fmt.Errorf("authentication failed: %w", err)
		}
		hc.authed, hc.host = true, host
		if host.ID != "" {
			hc.key = "host:" + host.ID
		}
		hc.ctx = clients.WithHostConf(hc.ctx, host)
		log.Printf("[INFO][UDS] host %q authenticated", host.ID)
		return nil, nil
	}
	if !hc.authed {
		return nil, ErrAuthRequired
	}

	if (req.Op == OpCall || req.Op == OpGet) && s.Limiter != nil && !s.Limiter.Allow(hc.key, time.Now()) {
		return nil, ErrRateLimited
	}

	switch req.Op {
	case OpDescribe:
		return s.describe(req.Module)
	case OpCall:
		args, err := script.DecodeValues(req.Args, hc.handles)
		if err != nil {
			return nil, err
		}
		var v script.Value
		if req.This != "" {
			obj, ok := hc.handles.Lookup(req.This)
			if !ok {
				return nil, fmt.Errorf("%w: %s", script.ErrUnknownHandle, req.This)
			}
			v, err = obj.Call(hc.ctx, req.Fn, args)
		} else {
			m, ok := s.Modules[req.Module]
			if !ok {
				return nil, fmt.Errorf("unknown module %q", req.Module)
			}
			v, err = m.Call(hc.ctx, req.Fn, args)
		}
		if err != nil {
			return nil, err
		}
		return script.EncodeValue(v, hc.handles)
	case OpGet:
		obj, ok := hc.handles.Lookup(req.This)
		if !ok {
			return nil, fmt.Errorf("%w: %s", script.ErrUnknownHandle, req.This)
		}
		v, err := obj.Get(hc.ctx, req.Prop)
		if err != nil {
			return nil, err
		}
		return script.EncodeValue(v, hc.handles)
	case OpRelease:
		if !hc.handles.Release(req.This) {
			return nil, fmt.Errorf("%w: %s", script.ErrUnknownHandle, req.This)
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unknown op %q", req.Op)
}

func (s *Service) describe(module string) (json.RawMessage, error) {
	if module != "" {
		m, ok := s.Modules[module]
		if !ok {
			return nil, fmt.Errorf("unknown module %q", module)
		}
		return json.Marshal(m.Describe())
	}
	names := make([]string, 0, len(s.Modules))
	for n := range s.Modules {
		names = append(names, n)
	}
	sort.Strings(names)
	infos := make([]script.ModuleInfo, 0, len(names))
	for _, n := range names {
		infos = append(infos, s.Modules[n].Describe())
	}
	return json.Marshal(infos)
}
