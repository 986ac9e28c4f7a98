package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/apllodb/apllodb-sub001/internal/apllodb/apperrors"
	"github.com/apllodb/apllodb-sub001/internal/apllodb/session"
	"github.com/apllodb/apllodb-sub001/internal/config"
)

// Server is apllodbd's client protocol endpoint: one session.Manager
// behind a JSON/HTTP API served over a Unix domain socket, built from a
// UDS listener, an http.Server, and a flock-guarded single-instance lock.
type Server struct {
	cfg     config.Config
	sm      *session.Manager
	httpSrv *http.Server

	mu       sync.Mutex
	listener net.Listener
	lockFile *os.File
	shutdown sync.Once
}

func New(cfg config.Config, sm *session.Manager) *Server {
	mux := http.NewServeMux()
	s := &Server{
		cfg: cfg,
		sm:  sm,
		httpSrv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	mux.HandleFunc("/v1/health", s.healthHandler)
	mux.HandleFunc("/v1/sessions", s.sessionsHandler)
	mux.HandleFunc("/v1/sessions/", s.sessionByIDHandler)
	return s
}

func (s *Server) Start(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.cfg.SocketPath), 0o755); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	if err := s.acquireLock(); err != nil {
		return err
	}
	if st, err := os.Lstat(s.cfg.SocketPath); err == nil {
		if st.Mode()&os.ModeSocket == 0 {
			s.releaseLock() //nolint:errcheck
			return fmt.Errorf("socket path exists and is not a unix socket: %s", s.cfg.SocketPath)
		}
		if err := os.Remove(s.cfg.SocketPath); err != nil {
			s.releaseLock() //nolint:errcheck
			return fmt.Errorf("remove stale socket: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		s.releaseLock() //nolint:errcheck
		return fmt.Errorf("stat socket path: %w", err)
	}

	ln, err := net.Listen("unix", s.cfg.SocketPath)
	if err != nil {
		s.releaseLock() //nolint:errcheck
		return fmt.Errorf("listen uds: %w", err)
	}
	if err := os.Chmod(s.cfg.SocketPath, 0o600); err != nil {
		ln.Close() //nolint:errcheck
		s.releaseLock()  //nolint:errcheck
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			_ = s.Shutdown(context.Background())
			return fmt.Errorf("serve uds: %w", err)
		}
		return nil
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdown.Do(func() {
		if shutErr := s.httpSrv.Shutdown(ctx); shutErr != nil {
			err = shutErr
		}
		s.mu.Lock()
		ln := s.listener
		s.listener = nil
		s.mu.Unlock()
		if ln != nil {
			_ = ln.Close()
		}
		if s.cfg.SocketPath != "" {
			_ = os.Remove(s.cfg.SocketPath)
		}
		_ = s.releaseLock()
	})
	return err
}

func (s *Server) acquireLock() error {
	lockPath := s.cfg.SocketPath + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("apllodbd already running")
	}
	s.mu.Lock()
	s.lockFile = f
	s.mu.Unlock()
	return nil
}

func (s *Server) releaseLock() error {
	s.mu.Lock()
	f := s.lockFile
	s.lockFile = nil
	s.mu.Unlock()
	if f == nil {
		return nil
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return f.Close()
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sessionsHandler handles POST /v1/sessions (open a new session).
func (s *Server) sessionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	id := s.sm.Open()
	s.writeJSON(w, http.StatusCreated, map[string]string{"session_id": string(id)})
}

// sessionByIDHandler handles the per-session sub-resources:
//   - DELETE /v1/sessions/{id}           close the session
//   - GET    /v1/sessions/{id}           report its state
//   - POST   /v1/sessions/{id}/statements execute one StatementDTO
func (s *Server) sessionByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	parts := strings.SplitN(rest, "/", 2)
	id := session.ID(parts[0])
	if id == "" {
		s.writeError(w, http.StatusNotFound, "not_found", "missing session id")
		return
	}

	if len(parts) == 2 && parts[1] == "statements" {
		s.statementHandler(w, r, id)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, map[string]any{"state": s.sm.State(id)})
	case http.MethodDelete:
		if err := s.sm.Close(id); err != nil {
			s.writeAppError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		s.methodNotAllowed(w, http.MethodGet, http.MethodDelete)
	}
}

func (s *Server) statementHandler(w http.ResponseWriter, r *http.Request, id session.ID) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	var dto StatementDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		s.writeError(w, http.StatusBadRequest, string(apperrors.SyntaxError), err.Error())
		return
	}
	stmt, err := dto.ToStatement()
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	res, err := s.sm.Execute(r.Context(), id, stmt)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	out, err := toResultDTO(res)
	if err != nil {
		s.writeAppError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, msg string) {
	s.writeJSON(w, status, map[string]string{"code": code, "message": msg})
}

// writeAppError maps an apperrors.Kind onto an HTTP status, the daemon's
// equivalent of an error-kind-carrying response.
func (s *Server) writeAppError(w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperrors.UndefinedObject, apperrors.UndefinedTable, apperrors.UndefinedColumn:
		status = http.StatusNotFound
	case apperrors.DuplicateTable, apperrors.DuplicateDatabase, apperrors.DuplicateColumn,
		apperrors.IntegrityConstraintUniqueViolation:
		status = http.StatusConflict
	case apperrors.InvalidTransactionState, apperrors.InvalidName, apperrors.NameTooLong,
		apperrors.DatatypeMismatch, apperrors.SyntaxError, apperrors.FeatureNotSupported,
		apperrors.IntegrityConstraintNotNullViolation, apperrors.IntegrityConstraintViolation,
		apperrors.DataExceptionIllegalConversion, apperrors.DataExceptionIllegalOperation,
		apperrors.AmbiguousColumn, apperrors.InvalidTableDefinition:
		status = http.StatusUnprocessableEntity
	case apperrors.DeadlockDetected:
		status = http.StatusServiceUnavailable
	}
	code := string(kind)
	if code == "" {
		code = "internal"
	}
	s.writeError(w, status, code, err.Error())
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allow ...string) {
	if len(allow) > 0 {
		w.Header().Set("Allow", strings.Join(allow, ", "))
	}
	s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}
