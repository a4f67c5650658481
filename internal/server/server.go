package server

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httputil"
	"strings"
	"sync"

	"gihan9a/positionmodeler/internal/config"
	"gihan9a/positionmodeler/internal/modeler"

	"github.com/goccy/go-json"
	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// Subscription is a client following the ordered collection
type Subscription struct {
	ID      string
	Updates chan []byte // Updates receives full snapshots of the ordered collection
}

// PositionServer exposes the modeler over HTTP
type PositionServer struct {
	config        *config.Config
	service       *modeler.Service
	subscriptions map[string]Subscription
	reverseProxy  *httputil.ReverseProxy
	mu            sync.RWMutex
	stopFeed      func()
}

// NewPositionServer creates a PositionServer and starts following the service's
// change feed
func NewPositionServer(config *config.Config, service *modeler.Service) *PositionServer {
	server := &PositionServer{
		config:        config,
		service:       service,
		subscriptions: make(map[string]Subscription),
	}

	// Configure reverse proxy if URL is provided
	if config.ProxyURL != nil {
		server.setupProxy()
	}

	changes, stop := service.Changes().Subscribe()
	server.stopFeed = stop
	go server.watchChanges(changes)

	return server
}

// setupProxy configures the reverse proxy
func (s *PositionServer) setupProxy() {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if s.config.InsecureProxy {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	s.reverseProxy = &httputil.ReverseProxy{
		Director: func(req *http.Request) {
			req.URL.Scheme = s.config.ProxyURL.Scheme
			req.URL.Host = s.config.ProxyURL.Host
			req.Host = s.config.ProxyURL.Host

			if s.config.ProxyURL.RawQuery != "" {
				if req.URL.RawQuery == "" {
					req.URL.RawQuery = s.config.ProxyURL.RawQuery
				} else {
					req.URL.RawQuery = s.config.ProxyURL.RawQuery + "&" + req.URL.RawQuery
				}
			}
		},
		Transport: transport,
	}

	glog.Infof("Proxy mode enabled: unknown routes will be forwarded to %s", s.config.ProxyURL.String())
	if s.config.InsecureProxy {
		glog.Warningf("SSL certificate verification disabled for proxy requests")
	}
}

// Close stops following the change feed
func (s *PositionServer) Close() {
	if s.stopFeed != nil {
		s.stopFeed()
	}
}

// watchChanges sends a fresh snapshot to subscribers after every change
func (s *PositionServer) watchChanges(changes <-chan modeler.Change) {
	for change := range changes {
		glog.V(2).Infof("Collection changed: %s %v", change.Kind, change.IDs)

		s.mu.RLock()
		idle := len(s.subscriptions) == 0
		s.mu.RUnlock()
		if idle {
			continue
		}

		data, err := s.snapshot(context.Background())
		if err != nil {
			glog.Warningf("Error reading positions for subscribers: %v", err)
			continue
		}
		s.notifySubscribers(data)
	}
}

// snapshot encodes the ordered collection
func (s *PositionServer) snapshot(ctx context.Context) ([]byte, error) {
	docs, err := s.service.ListAllOrdered(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(docs)
}

// SetupRoutes configures the HTTP routes for the server
func (s *PositionServer) SetupRoutes() http.Handler {
	router := mux.NewRouter()

	api := router
	if base := strings.TrimSuffix(s.config.BasePath, "/"); base != "" {
		api = router.PathPrefix(base).Subrouter()
	}

	api.HandleFunc("/positions", s.listPositions).Methods(http.MethodGet)
	api.HandleFunc("/positions", s.patchPositions).Methods(http.MethodPatch)
	api.HandleFunc("/positions/ws", s.handleWebsocket).Methods(http.MethodGet)
	api.HandleFunc("/positions/delete", s.deletePositions).Methods(http.MethodPost)
	api.HandleFunc("/position", s.createPosition).Methods(http.MethodPost)
	api.HandleFunc("/position", s.replacePosition).Methods(http.MethodPut)
	api.HandleFunc("/position", s.patchPosition).Methods(http.MethodPatch)
	api.HandleFunc("/position/{id}", s.getPosition).Methods(http.MethodGet)
	api.HandleFunc("/position/{id}", s.deletePosition).Methods(http.MethodDelete)

	if s.reverseProxy != nil {
		router.NotFoundHandler = http.HandlerFunc(s.proxyRequest)
	}

	if !s.config.CORS.Enabled {
		return router
	}
	return s.newCORS().Handler(router)
}

func (s *PositionServer) newCORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   s.config.CORS.AllowOrigins,
		AllowedMethods:   s.config.CORS.AllowMethods,
		AllowedHeaders:   s.config.CORS.AllowHeaders,
		ExposedHeaders:   []string{"Version", "Parents", "Subscribe"},
		AllowCredentials: s.config.CORS.AllowCredentials,
		MaxAge:           s.config.CORS.MaxAge,
	})
}

// originAllowed applies the CORS origin list to websocket upgrades
func (s *PositionServer) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || !s.config.CORS.Enabled {
		return true
	}
	for _, allowed := range s.config.CORS.AllowOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
