package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"

	"fieldsync/internal/api"
	"fieldsync/internal/daemon"
	"fieldsync/internal/logging"
	"fieldsync/internal/queue"
)

// Server answers JSON-RPC calls from the CLI on a Unix socket. The socket is
// only accessible to its owner since queue payloads carry visit details.
type Server struct {
	path     string
	logger   *slog.Logger
	listener net.Listener
	rpc      *rpc.Server

	stop     context.CancelFunc
	stopping <-chan struct{}
	conns    sync.WaitGroup
}

// NewServer binds path, replacing a stale socket left by a crashed daemon.
// RPC handlers run against ctx; canceling it stops accepting connections.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}

	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(serviceName, &service{daemon: d, logger: logger, ctx: ctx}); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serveCtx, stop := context.WithCancel(ctx)
	return &Server{
		path:     path,
		logger:   logger,
		listener: listener,
		rpc:      rpcServer,
		stop:     stop,
		stopping: serveCtx.Done(),
	}, nil
}

// Serve accepts connections in the background until Close or ctx cancellation.
func (s *Server) Serve() {
	s.logger.Debug("ipc listening", logging.String("socket", s.path))
	s.conns.Add(1)
	go s.acceptLoop()
	go func() {
		<-s.stopping
		_ = s.listener.Close()
	}()
}

func (s *Server) acceptLoop() {
	defer s.conns.Done()
	for {
		conn, err := s.listener.Accept()
		switch {
		case err == nil:
			s.conns.Add(1)
			go func() {
				defer s.conns.Done()
				s.rpc.ServeCodec(jsonrpc.NewServerCodec(conn))
			}()
		case errors.Is(err, net.ErrClosed):
			return
		default:
			select {
			case <-s.stopping:
				return
			default:
			}
			logging.WarnWithContext(s.logger, "ipc accept failed", "ipc_accept_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on paths.data_dir"),
				logging.String(logging.FieldImpact, "queue and status commands fall back to the queue file"),
			)
		}
	}
}

// Close stops accepting, waits for connected clients to hang up, and removes
// the socket file.
func (s *Server) Close() {
	s.stop()
	_ = s.listener.Close()
	s.conns.Wait()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(s.logger, "ipc socket not removed", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the socket file before the next daemon start"),
			logging.String(logging.FieldImpact, "fieldsync status may report a stale daemon"),
		)
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.logger.Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.logger.Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.daemon.Status(s.ctx).APIStatus()
	return nil
}

func (s *service) SyncNow(_ SyncNowRequest, resp *SyncNowResponse) error {
	s.logger.Debug("sync requested")
	report, err := s.daemon.SyncNow(s.ctx)
	if err != nil {
		return err
	}
	resp.Report = api.FromSyncReport(report)
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	statuses := make([]queue.Status, 0, len(req.Statuses))
	for _, value := range req.Statuses {
		parsed, ok := queue.ParseStatus(value)
		if !ok {
			return fmt.Errorf("unknown queue status %q", value)
		}
		statuses = append(statuses, parsed)
	}
	items, err := s.daemon.ListQueue(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Items = items
	return nil
}

func (s *service) QueueDeadLetters(_ QueueDeadLettersRequest, resp *QueueListResponse) error {
	items, err := s.daemon.ListQueue(s.ctx, []queue.Status{queue.StatusDeadLetter})
	if err != nil {
		return err
	}
	resp.Items = items
	return nil
}

func (s *service) QueueDescribe(req QueueDescribeRequest, resp *QueueDescribeResponse) error {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return errors.New("queue item id is required")
	}
	item, err := s.daemon.DescribeItem(s.ctx, id)
	if err != nil {
		return err
	}
	if item != nil {
		resp.Found = true
		resp.Item = *item
	}
	return nil
}

func (s *service) QueueRemove(req QueueRemoveRequest, resp *QueueRemoveResponse) error {
	if len(req.IDs) == 0 {
		return errors.New("queue remove requires at least one id")
	}
	removed, err := s.daemon.RemoveItems(s.ctx, req.IDs)
	if err != nil {
		return err
	}
	resp.Removed = removed
	return nil
}

func (s *service) QueueClear(_ QueueClearRequest, resp *QueueClearResponse) error {
	s.logger.Debug("queue clear requested")
	removed, err := s.daemon.ClearQueue(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.logger.Info("queue cleared",
		logging.String(logging.FieldEventType, "queue_clear"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) QueueRequeue(req QueueRequeueRequest, resp *QueueRequeueResponse) error {
	s.logger.Debug("queue requeue requested", logging.Int("item_count", len(req.IDs)))
	updated, err := s.daemon.Requeue(s.ctx, req.IDs)
	if err != nil {
		return err
	}
	resp.Updated = updated
	s.logger.Info("dead letters requeued",
		logging.String(logging.FieldEventType, "queue_requeue"),
		logging.Int64("updated_count", updated))
	return nil
}
