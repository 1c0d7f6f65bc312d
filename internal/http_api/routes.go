package http_api

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	s.router.GET("/", s.health)
	s.router.GET("/health", s.health)
	s.router.GET("/api/v1/status", s.status)
}
