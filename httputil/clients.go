package httputil

import (
	"net"
	"net/http"
	"time"
)

// Clients holds the shared HTTP clients used across the app
type Clients struct {
	API *http.Client // Supabase REST and other backend APIs
}

func NewClients() *Clients {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Clients{
		API: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}
