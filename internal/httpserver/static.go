package httpserver

import (
	"io"
	"net/http"
)

const bannerText = "School League signaling server is running\n"

// rootHandler serves cfg.StaticDir when configured, or a plain-text banner
// at exactly "/" otherwise.
func (s *Server) rootHandler() http.Handler {
	if s.cfg.StaticDir != "" {
		return http.FileServer(http.Dir(s.cfg.StaticDir))
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, bannerText)
	})
}
