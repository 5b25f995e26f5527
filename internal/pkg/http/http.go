package http

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net"
	"net/http"
	"net/http/pprof"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/jmakaron/dbcursor/pkg/logger"
)

type loggedResp struct {
	w      http.ResponseWriter
	status int
}

func (lr *loggedResp) Header() http.Header {
	return lr.w.Header()
}

func (lr *loggedResp) Write(b []byte) (int, error) {
	if lr.status == 0 {
		lr.status = http.StatusOK
	}
	return lr.w.Write(b)
}

func (lr *loggedResp) WriteHeader(statusCode int) {
	lr.status = statusCode
	lr.w.WriteHeader(statusCode)
}

var ErrNoRoutes = errors.New("no routes")

type HandlerWithError func(http.ResponseWriter, *http.Request) error

type Route struct {
	Method string
	Path   string
}

/* first key: prefix in the format of /<noun>
 * second key: route name
 * value: method and path below the prefix, e.g. /{id1}
 */
type RouteLayout map[string]map[string]Route

// RouterSpec binds route names to handlers.
type RouterSpec map[string]HandlerWithError

type HTTPServiceCfg struct {
	Addr      string `json:"addr" yaml:"addr"`
	Port      int    `json:"port" yaml:"port"`
	CertFile  string `json:"cert_file" yaml:"cert_file"`
	KeyFile   string `json:"key_file" yaml:"key_file"`
	SrvPrefix string `json:"srv_prefix" yaml:"srv_prefix"`
	Debug     bool   `json:"debug" yaml:"debug"`
}

type HTTPService struct {
	log      *logger.Logger
	srv      *http.Server
	isSecure bool
	ctx      context.Context
	cancel   context.CancelFunc
	certFile string
	keyFile  string
	ep       string
	Scheme   string
}

func (h *HTTPService) wrapHandler(handler HandlerWithError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		srcIP, _, _ := net.SplitHostPort(r.RemoteAddr)
		reqURL := r.URL.String()
		start := time.Now()
		var handlerErr error
		lr := &loggedResp{w: w}
		defer func() {
			var logErr error
			var logMsg string
			if r := recover(); r != nil {
				buf := make([]byte, 1<<16)
				runtime.Stack(buf, false)
				h.log.Error(string(buf))
				logErr = fmt.Errorf("%v", r)
			} else {
				logErr = handlerErr
			}
			logMsg = fmt.Sprintf("[%s %s] %v %v %v [%v] (%v) <%#v>",
				h.Scheme, h.srv.Addr, srcIP, r.Method, reqURL,
				lr.status, time.Since(start),
				logErr)
			if handlerErr != nil {
				h.log.Error(logMsg)
			} else {
				h.log.Info(logMsg)
			}
		}()
		handlerErr = handler(lr, r)
	}
}

func (h *HTTPService) Init(cfg HTTPServiceCfg, layout RouteLayout, rspec *RouterSpec, log *logger.Logger) error {
	h.certFile = cfg.CertFile
	h.keyFile = cfg.KeyFile
	h.ep = fmt.Sprintf("%s:%d", cfg.Addr, cfg.Port)
	h.log = log
	if len(h.certFile) > 0 && len(h.keyFile) > 0 {
		h.Scheme = "https"
		h.isSecure = true
	} else {
		h.Scheme = "http"
	}
	h.srv = &http.Server{Addr: h.ep}
	if rspec == nil {
		return ErrNoRoutes
	}
	h.srv.Handler = h.registerHandlers(cfg.SrvPrefix, cfg.Debug, layout, *rspec)
	return nil
}

// Handler returns the router built by Init.
func (h *HTTPService) Handler() http.Handler {
	return h.srv.Handler
}

func (h *HTTPService) registerHandlers(srvPrefix string, debug bool, layout RouteLayout, rspec RouterSpec) http.Handler {
	router := mux.NewRouter()
	r := router.PathPrefix(fmt.Sprintf("/%sd", srvPrefix)).Subrouter()
	if debug {
		router.PathPrefix("/debug/pprof/cmdline").HandlerFunc(pprof.Cmdline)
		router.PathPrefix("/debug/pprof/profile").HandlerFunc(pprof.Profile)
		router.PathPrefix("/debug/pprof/symbol").HandlerFunc(pprof.Symbol)
		router.PathPrefix("/debug/pprof/trace").HandlerFunc(pprof.Trace)
		router.PathPrefix("/debug/pprof").HandlerFunc(pprof.Index)
	}
	for _, prefix := range slices.Sorted(maps.Keys(layout)) {
		routes := layout[prefix]
		entry := r.PathPrefix(prefix).Subrouter() // map to ep/srvPrefix/<prefix>
		for _, name := range routeOrder(routes) {
			route := routes[name]
			if handler, ok := rspec[name]; ok && handler != nil {
				entry.HandleFunc(route.Path, h.wrapHandler(handler)).Methods(route.Method).Name(name)
			}
		}
	}
	return router
}

// routeOrder sorts route names by path, then by name, with bare prefix routes
// last. mux reports a method mismatch only when the last route tried matched
// the path.
func routeOrder(routes map[string]Route) []string {
	names := slices.Collect(maps.Keys(routes))
	slices.SortFunc(names, func(a, b string) int {
		pa, pb := routes[a].Path, routes[b].Path
		if (pa == "") != (pb == "") {
			if pa == "" {
				return 1
			}
			return -1
		}
		if c := strings.Compare(pa, pb); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return names
}

func (h *HTTPService) Start() error {
	h.ctx, h.cancel = context.WithCancel(context.Background())
	errCh := make(chan error)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	go func() {
		var err error
		if h.isSecure {
			err = h.srv.ListenAndServeTLS(h.certFile, h.keyFile)
		} else {
			err = h.srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			select {
			case <-ctx.Done():
				h.log.Error(fmt.Sprintf("failed to start http server: %+v", err))
			default:
				errCh <- err
			}
		}
	}()
	var err error
	select {
	case <-ctx.Done():
	case err = <-errCh:
	}
	return err
}

func (h *HTTPService) Stop() error {
	var err error
	if h.cancel != nil {
		h.cancel()
		err = h.srv.Shutdown(context.Background())
	}
	return err
}

func GetIdList(r *http.Request) []string {
	vars := mux.Vars(r)
	l := []string{}
	if vars != nil {
		for i, ok := 1, true; ok; i++ {
			id := fmt.Sprintf("id%d", i)
			var v string
			if v, ok = vars[id]; ok {
				l = append(l, v)
			}
		}
	}
	return l
}
