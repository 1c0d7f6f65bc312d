package models

// APIServer is the liveness HTTP surface of the service.
type APIServer interface {
	Start()
	Shutdown() error
}
