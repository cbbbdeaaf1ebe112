package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/njchilds90/rbf"
	"github.com/njchilds90/rbf/symbolic"
)

const maxBodyBytes = 1 << 20 // 1 MiB

var errBadRequest = errors.New("bad request")

// evaluateRequest names either a predefined kernel or a JSON expression tree
// in r and eps.
type evaluateRequest struct {
	Kernel       string          `json:"kernel,omitempty"`
	Expr         json.RawMessage `json:"expr,omitempty"`
	Tol          *float64        `json:"tol,omitempty"`
	X            [][]float64     `json:"x"`
	C            [][]float64     `json:"c"`
	Eps          *float64        `json:"eps,omitempty"`
	EpsPerCenter []float64       `json:"eps_per_center,omitempty"`
	Diff         []int           `json:"diff,omitempty"`
}

// evaluateResponse holds the N x M result. Non-finite entries are null.
type evaluateResponse struct {
	Result [][]*float64 `json:"result"`
	RBF    string       `json:"rbf"`
}

type kernelInfo struct {
	Name      string `json:"name"`
	Expr      string `json:"expr"`
	LaTeX     string `json:"latex"`
	Tolerance string `json:"tolerance,omitempty"`
	Limits    int    `json:"limits"`
}

type server struct {
	logger  *zap.Logger
	backend rbf.Backend

	mu      sync.Mutex
	kernels map[string]*rbf.RBF
}

func newServer(logger *zap.Logger, backend rbf.Backend) *server {
	return &server{logger: logger, backend: backend, kernels: map[string]*rbf.RBF{}}
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/evaluate", s.recoverer(s.handleEvaluate))
	mux.HandleFunc("/kernels", s.handleKernels)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	})
	return mux
}

func (s *server) recoverer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic in handler",
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()),
				)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

// POST /evaluate
func (s *server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req evaluateRequest
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	// Ensure there's no trailing junk.
	if dec.More() {
		writeError(w, http.StatusBadRequest, errors.New("invalid JSON: trailing data"))
		return
	}

	k, err := s.resolve(req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	var opts []rbf.EvalOption
	if req.Eps != nil {
		opts = append(opts, rbf.WithEps(*req.Eps))
	}
	if req.EpsPerCenter != nil {
		opts = append(opts, rbf.WithEpsPerCenter(req.EpsPerCenter))
	}
	if req.Diff != nil {
		opts = append(opts, rbf.WithDiff(req.Diff...))
	}

	start := time.Now()
	out, err := k.Evaluate(req.X, req.C, opts...)
	if err != nil {
		s.logger.Info("evaluation failed", zap.String("rbf", k.String()), zap.Error(err))
		writeError(w, statusFor(err), err)
		return
	}
	s.logger.Debug("evaluated",
		zap.String("rbf", k.String()),
		zap.Int("points", len(req.X)),
		zap.Int("centers", len(req.C)),
		zap.Duration("elapsed", time.Since(start)),
	)

	n, m := out.Dims()
	result := make([][]*float64, n)
	for i := range result {
		result[i] = make([]*float64, m)
		for j := range result[i] {
			if v := out.At(i, j); !math.IsNaN(v) && !math.IsInf(v, 0) {
				result[i][j] = &v
			}
		}
	}
	writeJSON(w, http.StatusOK, evaluateResponse{Result: result, RBF: k.String()})
}

// resolve returns the RBF a request names. Predefined kernels are shared
// across requests so their compile caches persist; expressions are built per
// request.
func (s *server) resolve(req evaluateRequest) (*rbf.RBF, error) {
	switch {
	case req.Kernel != "" && len(req.Expr) > 0:
		return nil, fmt.Errorf("%w: give either kernel or expr, not both", errBadRequest)
	case len(req.Expr) > 0:
		e, err := symbolic.ParseJSON(req.Expr)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", rbf.ErrInvalidExpression, err)
		}
		opts := []rbf.Option{rbf.WithBackend(s.backend), rbf.WithLogger(s.logger)}
		if req.Tol != nil {
			opts = append(opts, rbf.WithTol(*req.Tol))
		}
		return rbf.New(e, opts...)
	case req.Kernel != "":
		if req.Tol != nil {
			return nil, fmt.Errorf("%w: tol applies only to expr requests", errBadRequest)
		}
		return s.kernel(req.Kernel)
	}
	return nil, fmt.Errorf("%w: missing kernel or expr", errBadRequest)
}

func (s *server) kernel(name string) (*rbf.RBF, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.kernels[name]; ok {
		return k, nil
	}
	k, err := rbf.Kernel(name)
	if err != nil {
		return nil, err
	}
	if err := k.SetBackend(s.backend); err != nil {
		return nil, err
	}
	s.kernels[name] = k
	return k, nil
}

// GET /kernels
func (s *server) handleKernels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	infos := make([]kernelInfo, 0, len(rbf.KernelNames()))
	for _, name := range rbf.KernelNames() {
		k, err := rbf.Kernel(name)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		info := kernelInfo{
			Name:   name,
			Expr:   k.Expr().String(),
			LaTeX:  k.Expr().LaTeX(),
			Limits: k.Limits().Len(),
		}
		if tol := k.Tolerance(); tol != nil {
			info.Tolerance = tol.String()
		}
		infos = append(infos, info)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"kernels": infos})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, symbolic.ErrLimitDivergent),
		errors.Is(err, symbolic.ErrLimitUndetermined),
		errors.Is(err, symbolic.ErrUnsupported):
		return http.StatusUnprocessableEntity
	case errors.Is(err, rbf.ErrShapeMismatch),
		errors.Is(err, rbf.ErrInvalidDerivative),
		errors.Is(err, rbf.ErrInvalidExpression),
		errors.Is(err, rbf.ErrInvalidTolerance),
		errors.Is(err, rbf.ErrUnknownKernel),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
