package server

import (
	"net/http"

	"github.com/golang/glog"
)

// proxyRequest forwards routes the modeler does not serve to the configured
// upstream (for example the front end dev server)
func (s *PositionServer) proxyRequest(w http.ResponseWriter, r *http.Request) {
	if s.reverseProxy == nil {
		http.NotFound(w, r)
		return
	}
	glog.V(1).Infof("Route %s %s not served locally, proxying to %s", r.Method, r.URL.Path, s.config.ProxyURL.String())
	s.reverseProxy.ServeHTTP(w, r)
}
