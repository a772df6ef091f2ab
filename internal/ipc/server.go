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
	"sync"

	"crossdock/internal/daemon"
	"crossdock/internal/logging"
	"crossdock/internal/offline"
	"crossdock/internal/scan"
	"crossdock/internal/token"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path. The
// optional onStop callback runs after a Stop RPC, letting the daemon main
// loop exit.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger, onStop func()) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx, onStop: onStop}
	if err := rpcServer.RegisterName("Crossdock", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
	onStop func()
}

func outcomeDTO(o scan.Outcome) OutcomeDTO {
	return OutcomeDTO{
		Class:     string(o.Class),
		Success:   o.Success,
		Duplicate: o.Duplicate,
		Code:      string(o.Code),
		Message:   o.Message,
		Reference: o.Reference,
		Retryable: o.Retryable,
		Timestamp: o.Timestamp,
	}
}

func queueEntryDTO(entry *offline.QueuedScan) QueueEntry {
	return QueueEntry{
		ID:            entry.ID,
		CorrelationID: entry.CorrelationID,
		AWB:           entry.AWB,
		Mode:          string(entry.Mode),
		ManifestCode:  entry.ManifestCode,
		Source:        string(entry.Source),
		Status:        string(entry.Status),
		EnqueuedAt:    entry.EnqueuedAt,
		AttemptCount:  entry.AttemptCount,
		LastError:     entry.LastError,
	}
}

func (s *service) Scan(req ScanRequest, resp *ScanResponse) error {
	source, ok := token.ParseSource(req.Source)
	if !ok {
		source = token.SourceManual
	}
	resp.Outcome = outcomeDTO(s.daemon.Scan(s.ctx, req.Token, source))
	return nil
}

func (s *service) ModeSet(req ModeSetRequest, resp *ModeSetResponse) error {
	mode, ok := scan.ParseMode(req.Mode)
	if !ok {
		return fmt.Errorf("unknown mode %q", req.Mode)
	}
	s.daemon.SetMode(mode)
	resp.Mode = string(mode)
	return nil
}

func (s *service) ManifestClear(_ ManifestClearRequest, resp *ManifestClearResponse) error {
	s.daemon.ClearManifest()
	resp.Cleared = true
	return nil
}

func (s *service) SessionReset(_ SessionResetRequest, resp *SessionResetResponse) error {
	s.daemon.ResetSession()
	resp.Reset = true
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	st := s.daemon.Status(s.ctx)
	resp.Running = st.Running
	resp.PID = st.PID
	resp.Mode = string(st.Mode)
	resp.ActiveManifest = st.ActiveManifest
	resp.ManifestStatus = st.ManifestStatus
	resp.Online = st.Online
	resp.Draining = st.Draining
	resp.QueuePending = st.QueueStats.Pending
	resp.QueueFailed = st.QueueStats.Failed
	resp.RecordsDBPath = st.RecordsDBPath
	resp.QueueDBPath = st.QueueDBPath
	resp.LockPath = st.LockPath
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	entries := s.daemon.History()
	if req.Limit > 0 && req.Limit < len(entries) {
		entries = entries[:req.Limit]
	}
	resp.Outcomes = make([]OutcomeDTO, 0, len(entries))
	for _, entry := range entries {
		resp.Outcomes = append(resp.Outcomes, outcomeDTO(entry))
	}
	return nil
}

func (s *service) Stats(_ StatsRequest, resp *StatsResponse) error {
	stats := s.daemon.SessionStats()
	resp.ScanCount = stats.ScanCount
	resp.SuccessCount = stats.SuccessCount
	resp.ErrorCount = stats.ErrorCount
	resp.DuplicateCount = stats.DuplicateCount
	resp.DebouncedCount = stats.DebouncedCount
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	statuses := make([]offline.Status, 0, len(req.Statuses))
	for _, status := range req.Statuses {
		switch offline.Status(status) {
		case offline.StatusPending:
			statuses = append(statuses, offline.StatusPending)
		case offline.StatusFailed:
			statuses = append(statuses, offline.StatusFailed)
		}
	}
	entries, err := s.daemon.QueueList(s.ctx, statuses)
	if err != nil {
		return err
	}
	resp.Entries = make([]QueueEntry, 0, len(entries))
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, queueEntryDTO(entry))
	}
	return nil
}

func (s *service) QueueRetry(req QueueRetryRequest, resp *QueueRetryResponse) error {
	s.logger.Debug("queue retry requested", logging.Int("id_count", len(req.IDs)))
	updated, err := s.daemon.QueueRetry(s.ctx, req.IDs)
	if err != nil {
		return err
	}
	resp.Updated = updated
	return nil
}

func (s *service) QueueClearFailed(_ QueueClearFailedRequest, resp *QueueClearFailedResponse) error {
	removed, err := s.daemon.QueueClearFailed(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.logger.Info("offline queue failed entries cleared",
		logging.String(logging.FieldEventType, "queue_clear_failed"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) QueueClear(_ QueueClearRequest, resp *QueueClearResponse) error {
	removed, err := s.daemon.QueueClear(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.logger.Info("offline queue cleared",
		logging.String(logging.FieldEventType, "queue_clear"),
		logging.Int64("removed_count", removed))
	return nil
}

func (s *service) LinkSet(req LinkSetRequest, resp *LinkSetResponse) error {
	s.daemon.SetLink(req.Online)
	resp.Online = req.Online
	s.logger.Info("link state set via IPC", logging.Bool("online", req.Online))
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	if err := s.daemon.TestNotification(s.ctx); err != nil {
		resp.Sent = false
		resp.Message = err.Error()
		return nil
	}
	resp.Sent = true
	resp.Message = "notification sent"
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Info("daemon stop requested via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	s.daemon.Stop()
	resp.Stopped = true
	if s.onStop != nil {
		go s.onStop()
	}
	return nil
}
